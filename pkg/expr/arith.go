package expr

import (
	"fmt"
	"math"

	"github.com/lemonberrylabs/infixcalc/pkg/types"
)

// Apply performs a single operator application. Division by exactly zero
// returns a DivideByZero error.
func Apply(op Operator, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, types.NewDivideByZeroError()
		}
		return a / b, nil
	case OpPow:
		return math.Pow(a, b), nil
	default:
		return 0, types.NewMalformedError(fmt.Sprintf("unsupported operator %q", byte(op)), -1)
	}
}

// Fold evaluates a flat chain n0 op1 n1 op2 n2 ... strictly left to right,
// without regard to precedence. The chain must alternate numbers and
// operators and start and end with a number.
func Fold(seq []Token) (float64, error) {
	if len(seq) == 0 {
		return 0, types.NewMalformedError("no expression", -1)
	}
	if seq[0].Type != TokenNumber {
		return 0, unexpected(seq[0], "expected a number")
	}
	result := seq[0].Value
	for i := 1; i < len(seq); i += 2 {
		if seq[i].Type != TokenOperator {
			return 0, unexpected(seq[i], "expected an operator")
		}
		if i+1 >= len(seq) {
			return 0, unexpected(seq[i], "missing operand after operator")
		}
		rhs := seq[i+1]
		if rhs.Type != TokenNumber {
			return 0, unexpected(rhs, "expected a number")
		}
		v, err := Apply(seq[i].Op, result, rhs.Value)
		if err != nil {
			return 0, err
		}
		result = v
	}
	return result, nil
}

// unexpected builds a MalformedExpression error pointing at tok.
func unexpected(tok Token, msg string) error {
	return types.NewMalformedError(fmt.Sprintf("%s, got %q", msg, tok.String()), tok.Pos)
}
