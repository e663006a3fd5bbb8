package opt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExpr(t *testing.T) {
	testCases := []string{
		"(Scan 0)",
		"(Const -42)",
		"(Filter (Scan 3) (Eq (Col 2) (Const 3)))",
		"(Join (Filter (Scan 0) (Eq (Col 1) (Const 3))) (Filter (Scan 0) (Eq (Col 1) (Const 3))) (Eq (Col 1) (Col 3)))",
		"(Join commuted (Scan 1) (Scan 0) (Eq (Col 4) (Col 1)))",
	}
	for _, tc := range testCases {
		t.Run(tc, func(t *testing.T) {
			e, err := ParseExpr(tc)
			require.NoError(t, err)
			require.Equal(t, tc, e.Format())
		})
	}

	e, err := ParseExpr(`
(Join
  (Scan 0)
  (Scan 1)
  (Eq (Col 1) (Col 3)))`)
	require.NoError(t, err)
	require.True(t, e.Equals(Join(Scan(0), Scan(1), Eq(ColumnRef(1), ColumnRef(3)))))
	require.True(t, selfJoin().Equals(mustParse(t, selfJoin().Format())))
}

func mustParse(t *testing.T, s string) *Expr {
	e, err := ParseExpr(s)
	require.NoError(t, err)
	return e
}

func TestParseExprErrors(t *testing.T) {
	testCases := []struct {
		input string
		err   string
	}{
		{"", "unexpected token 'EOF' (line 1, pos 0)"},
		{"(Project (Scan 0))", `unknown operator "Project"`},
		{"(Scan)", "unexpected token ')' (line 1, pos 6)"},
		{"(Scan 0", "unexpected token 'EOF' (line 1, pos 7)"},
		{"(Scan 0) (Scan 1)", "unexpected token '(' (line 1, pos 10)"},
		{"(Join (Scan 0) (Scan 1))", "Join expects 3 children, found 2"},
		{"(Filter (Scan 0) (Scan 1))", "Filter child 1 cannot be Scan"},
		{"(Col -)", "unexpected token '-' (line 1, pos 6)"},
		{"(Scan 0 %)", "unexpected token '%' (line 1, pos 9)"},
		{"(Join swapped (Scan 0) (Scan 1) (Eq (Col 0) (Col 2)))", `invalid Join flags "swapped"`},
		{"(Join 1 (Scan 0) (Scan 1) (Eq (Col 0) (Col 2)))", "unexpected token '1' (line 1, pos 7)"},
		{"(Scan commuted)", "unexpected token 'commuted' (line 1, pos 14)"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			_, err := ParseExpr(tc.input)
			require.EqualError(t, err, tc.err)
		})
	}
}
