package expr

// Collapse reduces every operator of the given level, leftmost first. Each
// step isolates the operands on either side of the operator, folds the
// three-token slice and rebuilds the sequence with the result in its place,
// so chains like a-b+c associate to the left.
//
// The input must be free of brackets. The input slice is never modified.
func Collapse(seq []Token, level Level) ([]Token, error) {
	for {
		idx := indexOperator(seq, level)
		if idx < 0 {
			return seq, nil
		}
		if idx == 0 {
			return nil, unexpected(seq[idx], "missing operand before operator")
		}
		if idx == len(seq)-1 {
			return nil, unexpected(seq[idx], "missing operand after operator")
		}
		start, end := idx-1, idx+2

		v, err := Fold(seq[start:end])
		if err != nil {
			return nil, err
		}
		seq = splice(seq, start, end, NumberToken(v))
	}
}

// indexOperator returns the index of the leftmost operator of level, or -1.
func indexOperator(seq []Token, level Level) int {
	for i, t := range seq {
		if t.isOperatorOf(level) {
			return i
		}
	}
	return -1
}

// splice returns a new sequence with seq[start:end] replaced by repl.
func splice(seq []Token, start, end int, repl Token) []Token {
	out := make([]Token, 0, len(seq)-(end-start)+1)
	out = append(out, seq[:start]...)
	out = append(out, repl)
	out = append(out, seq[end:]...)
	return out
}
