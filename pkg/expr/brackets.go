package expr

import "github.com/lemonberrylabs/infixcalc/pkg/types"

// ResolveBrackets replaces every parenthesized group with its value. Each
// group that closes back to depth zero has its interior evaluated through the
// full pipeline (brackets, exponent, multiplicative, additive) and the whole
// span, parentheses included, is replaced by a single number. The scan
// restarts after every replacement until no brackets remain.
func ResolveBrackets(seq []Token) ([]Token, error) {
	for {
		start, end, err := outerGroup(seq)
		if err != nil {
			return nil, err
		}
		if start < 0 {
			return seq, nil
		}
		inner := seq[start+1 : end]
		if len(inner) == 0 {
			return nil, types.NewMalformedError("empty brackets", seq[start].Pos)
		}
		v, err := reduce(inner)
		if err != nil {
			return nil, err
		}
		seq = splice(seq, start, end+1, NumberToken(v))
	}
}

// outerGroup finds the first bracket pair that closes back to depth zero.
// It returns start = -1 when seq has no brackets.
func outerGroup(seq []Token) (start, end int, err error) {
	depth := 0
	start = -1
	for i, t := range seq {
		switch t.Type {
		case TokenLParen:
			if depth == 0 {
				start = i
			}
			depth++
		case TokenRParen:
			if depth == 0 {
				return -1, -1, types.NewMalformedError("close bracket ) with no open bracket", t.Pos)
			}
			depth--
			if depth == 0 {
				return start, i, nil
			}
		}
	}
	if depth > 0 {
		return -1, -1, types.NewMalformedError("open bracket ( with no close bracket", seq[start].Pos)
	}
	return -1, -1, nil
}
