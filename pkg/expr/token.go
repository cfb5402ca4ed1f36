// Package expr implements the infix arithmetic engine: number matching,
// bracket resolution, precedence-ordered reduction and two-operand
// arithmetic over float64 values.
package expr

import "strconv"

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenNumber   TokenType = iota // numeric literal or reduced value
	TokenOperator                  // ^ * / + -
	TokenLParen                    // (
	TokenRParen                    // )
)

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "NUMBER"
	case TokenOperator:
		return "OPERATOR"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	default:
		return "UNKNOWN"
	}
}

// Operator is one of the five supported binary operators.
type Operator byte

const (
	OpPow Operator = '^'
	OpMul Operator = '*'
	OpDiv Operator = '/'
	OpAdd Operator = '+'
	OpSub Operator = '-'
)

func (op Operator) String() string { return string(rune(op)) }

// Level is an operator precedence level. Higher levels bind tighter.
type Level int

const (
	LevelAdditive Level = iota + 1
	LevelMultiplicative
	LevelExponent
)

// Level returns the precedence level of op, or 0 for an unknown operator.
func (op Operator) Level() Level {
	switch op {
	case OpPow:
		return LevelExponent
	case OpMul, OpDiv:
		return LevelMultiplicative
	case OpAdd, OpSub:
		return LevelAdditive
	default:
		return 0
	}
}

// String names the level.
func (l Level) String() string {
	switch l {
	case LevelExponent:
		return "exponent"
	case LevelMultiplicative:
		return "multiplicative"
	case LevelAdditive:
		return "additive"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}

// reductionOrder is the order in which the orchestrator collapses levels.
var reductionOrder = [...]Level{LevelExponent, LevelMultiplicative, LevelAdditive}

// Token represents a single lexical token. Tokens produced by a reduction
// step have Value set and Text empty.
type Token struct {
	Type  TokenType
	Text  string   // raw source text, empty for computed numbers
	Value float64  // numeric value (for TokenNumber)
	Op    Operator // operator (for TokenOperator)
	Pos   int      // byte offset in the source, -1 for computed numbers
}

// NumberToken creates a computed number token.
func NumberToken(v float64) Token {
	return Token{Type: TokenNumber, Value: v, Pos: -1}
}

// String renders the token the way it would appear in an expression.
func (t Token) String() string {
	switch t.Type {
	case TokenNumber:
		if t.Text != "" {
			return t.Text
		}
		return strconv.FormatFloat(t.Value, 'g', -1, 64)
	case TokenOperator:
		return t.Op.String()
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	default:
		return "?"
	}
}

// isOperatorOf reports whether t is an operator at the given level.
func (t Token) isOperatorOf(level Level) bool {
	return t.Type == TokenOperator && t.Op.Level() == level
}
