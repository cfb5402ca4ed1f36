package expr

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/lemonberrylabs/infixcalc/pkg/types"
)

// MaxExpressionLength is the maximum allowed length for a single expression,
// in bytes.
const MaxExpressionLength = 4096

// numberPattern matches a non-negative decimal literal anchored at the start
// of the remaining input.
var numberPattern = regexp.MustCompile(`^\d*\.?\d+`)

// CharClass classifies a single input character.
type CharClass int

const (
	ClassOther CharClass = iota
	ClassDigit
	ClassDecimalPoint
	ClassOperator
	ClassBracket
	ClassSpace
)

// Classify returns the class of ch.
func Classify(ch byte) CharClass {
	switch {
	case ch >= '0' && ch <= '9':
		return ClassDigit
	case ch == '.':
		return ClassDecimalPoint
	case Operator(ch).Level() != 0:
		return ClassOperator
	case ch == '(' || ch == ')':
		return ClassBracket
	case ch < utf8.RuneSelf && unicode.IsSpace(rune(ch)):
		return ClassSpace
	default:
		return ClassOther
	}
}

// MatchNumber returns the longest numeric literal starting exactly at pos.
// A bare "." never matches.
func MatchNumber(s string, pos int) (string, bool) {
	if pos < 0 || pos >= len(s) {
		return "", false
	}
	m := numberPattern.FindString(s[pos:])
	return m, m != ""
}

// Lexer tokenizes an arithmetic expression.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the entire input and returns all tokens. Whitespace is
// dropped; positions refer to the untrimmed input.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch Classify(ch) {
		case ClassSpace:
			l.pos++
		case ClassDigit, ClassDecimalPoint:
			if err := l.readNumber(); err != nil {
				return nil, err
			}
		case ClassOperator:
			l.tokens = append(l.tokens, Token{Type: TokenOperator, Text: string(ch), Op: Operator(ch), Pos: l.pos})
			l.pos++
		case ClassBracket:
			t := TokenLParen
			if ch == ')' {
				t = TokenRParen
			}
			l.tokens = append(l.tokens, Token{Type: t, Text: string(ch), Pos: l.pos})
			l.pos++
		default:
			r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
			return nil, types.NewMalformedError(fmt.Sprintf("unexpected character %q", r), l.pos)
		}
	}
	return l.tokens, nil
}

// readNumber reads a literal matching numberPattern.
func (l *Lexer) readNumber() error {
	start := l.pos
	raw, ok := MatchNumber(l.input, start)
	if !ok {
		return types.NewMalformedError("invalid number", start)
	}
	v, err := parseNumber(raw)
	if err != nil {
		return types.NewMalformedError(fmt.Sprintf("invalid number %q", raw), start)
	}
	l.pos += len(raw)
	l.tokens = append(l.tokens, Token{Type: TokenNumber, Text: raw, Value: v, Pos: start})
	return nil
}

// Tokenize is a shortcut for NewLexer(input).Tokenize().
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}
