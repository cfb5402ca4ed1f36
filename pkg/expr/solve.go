package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/lemonberrylabs/infixcalc/pkg/types"
)

// Evaluate computes expression and formats the result rounded to two decimal
// places, with trailing zeros dropped ("7.5", "5", "0.33").
//
// Failures are *types.EvalError values tagged DivideByZero or
// MalformedExpression.
func Evaluate(expression string) (string, error) {
	v, err := Solve(expression)
	if err != nil {
		return "", err
	}
	return FormatResult(v), nil
}

// Solve computes expression and returns the value rounded to two decimal
// places.
func Solve(expression string) (float64, error) {
	if len(expression) > MaxExpressionLength {
		return 0, types.NewMalformedError(
			fmt.Sprintf("expression exceeds maximum length of %d characters", MaxExpressionLength), -1)
	}
	tokens, err := Tokenize(expression)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, types.NewMalformedError("no expression", -1)
	}
	v, err := reduce(tokens)
	if err != nil {
		return 0, err
	}
	return Round2(v), nil
}

// reduce runs the full order of operations over a token sequence and returns
// its unrounded value.
func reduce(seq []Token) (float64, error) {
	seq, err := ResolveBrackets(seq)
	if err != nil {
		return 0, err
	}
	for _, level := range reductionOrder {
		seq, err = Collapse(seq, level)
		if err != nil {
			return 0, err
		}
	}
	switch {
	case len(seq) == 0:
		return 0, types.NewMalformedError("no expression", -1)
	case seq[0].Type != TokenNumber:
		return 0, unexpected(seq[0], "expected a number")
	case len(seq) > 1:
		return 0, unexpected(seq[1], "expected an operator")
	}
	return seq[0].Value, nil
}

// Round2 rounds v to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	scaled := v * 100
	if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
		return v
	}
	r := math.Round(scaled) / 100
	if r == 0 {
		// Drop the sign of negative zero.
		return 0
	}
	return r
}

// FormatResult renders v with the shortest representation that round-trips,
// switching to exponent form at 1e21 and above.
func FormatResult(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.Abs(v) >= 1e21:
		return strconv.FormatFloat(v, 'e', -1, 64)
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// parseNumber converts a matched literal. Literals too large for a float64
// become infinity.
func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return v, nil
}
