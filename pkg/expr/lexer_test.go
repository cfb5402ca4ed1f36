package expr

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchNumber(t *testing.T) {
	tests := []struct {
		s      string
		pos    int
		want   string
		wantOK bool
	}{
		{"12", 0, "12", true},
		{"abc12.5x", 3, "12.5", true},
		{".75", 0, ".75", true},
		{"1.", 0, "1", true},
		{"1.2.3", 0, "1.2", true},
		{"1.2.3", 3, ".3", true},
		{"007", 0, "007", true},
		{".", 0, "", false},
		{"x", 0, "", false},
		{"+1", 0, "", false},
		{"12", 5, "", false},
		{"12", -1, "", false},
	}
	for _, tt := range tests {
		got, ok := MatchNumber(tt.s, tt.pos)
		assert.Equal(t, tt.wantOK, ok, "MatchNumber(%q, %d)", tt.s, tt.pos)
		assert.Equal(t, tt.want, got, "MatchNumber(%q, %d)", tt.s, tt.pos)
	}
}

func TestClassify(t *testing.T) {
	tests := map[byte]CharClass{
		'0':  ClassDigit,
		'9':  ClassDigit,
		'.':  ClassDecimalPoint,
		'^':  ClassOperator,
		'*':  ClassOperator,
		'/':  ClassOperator,
		'+':  ClassOperator,
		'-':  ClassOperator,
		'(':  ClassBracket,
		')':  ClassBracket,
		' ':  ClassSpace,
		'\t': ClassSpace,
		'x':  ClassOther,
		'%':  ClassOther,
		',':  ClassOther,
	}
	for ch, want := range tests {
		assert.Equal(t, want, Classify(ch), "Classify(%q)", ch)
	}
}

func TestTokenize(t *testing.T) {
	toks, err := Tokenize(" 12 + (3.5)")
	require.NoError(t, err)
	require.Len(t, toks, 5)

	want := []struct {
		typ TokenType
		pos int
	}{
		{TokenNumber, 1},
		{TokenOperator, 4},
		{TokenLParen, 6},
		{TokenNumber, 7},
		{TokenRParen, 10},
	}
	for i, w := range want {
		assert.Equal(t, w.typ, toks[i].Type, "token %d", i)
		assert.Equal(t, w.pos, toks[i].Pos, "token %d", i)
	}
	assert.Equal(t, 12.0, toks[0].Value)
	assert.Equal(t, OpAdd, toks[1].Op)
	assert.Equal(t, 3.5, toks[3].Value)
	assert.Equal(t, "3.5", toks[3].Text)
}

func TestTokenizeEmpty(t *testing.T) {
	toks, err := Tokenize("  \t ")
	require.NoError(t, err)
	assert.Empty(t, toks)
}

func TestTokenizeErrors(t *testing.T) {
	for _, input := range []string{"1+a", "2 # 3", "1.", "é"} {
		_, err := Tokenize(input)
		assert.Error(t, err, input)
	}
}

func TestTokenizeHugeLiteral(t *testing.T) {
	toks, err := Tokenize(strings.Repeat("9", 400))
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.True(t, math.IsInf(toks[0].Value, 1))
}
