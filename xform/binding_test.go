package xform

import (
	"testing"

	"github.com/petermattis/memotoy/memo"
	"github.com/petermattis/memotoy/opt"
	"github.com/stretchr/testify/require"
)

// twoJoins memorizes (a JOIN b) JOIN c:
//
//   G1: (Scan 0)  G2: (Scan 1)  G3: (Col 1)  G4: (Col 3)  G5: (Eq G3 G4)
//   G6: (Join G1 G2 G5)  G7: (Scan 2)  G8: (Col 4)  G9: (Col 5)
//   G10: (Eq G8 G9)  G11: (Join G6 G7 G10)
func twoJoins(t *testing.T) (*memo.Memo, memo.GroupID) {
	m := memo.New(testCatalog(t))
	root := m.Memorize(mustParse(t,
		"(Join (Join (Scan 0) (Scan 1) (Eq (Col 1) (Col 3))) (Scan 2) (Eq (Col 4) (Col 5)))"))
	require.Equal(t, memo.GroupID(11), root)
	return m, root
}

func TestBuildBinding(t *testing.T) {
	m, root := twoJoins(t)

	require.Equal(t, "G11", BuildBinding(m, root, 0).String())
	require.True(t, BuildBinding(m, root, 0).IsGroupRef())
	require.Equal(t, "(Join G6 G7 G10)", BuildBinding(m, root, 1).String())

	b := BuildBinding(m, root, 2)
	require.Equal(t, "(Join (Join G1 G2 G5) (Scan 2) (Eq G8 G9))", b.String())
	require.Equal(t, root, b.Group())
	require.Equal(t, 6, b.Width())
	require.Equal(t, 5, b.Child(0).Width())
	require.True(t, b.Child(2).Props().Scalar)
	require.False(t, b.IsConcrete())

	full := BuildBinding(m, root, 10)
	require.True(t, full.IsConcrete())
	require.EqualValues(t, 2, full.Child(1).Table())
}

func TestBindAllMembers(t *testing.T) {
	m, root := twoJoins(t)

	// Add the commuted inner join as an alternative of G6.
	c, ok := RuleByName("CommuteJoin")
	require.True(t, ok)
	inner := Bind(m, 6, m.Members(6)[0], c.Pattern)
	require.Len(t, inner, 1)
	require.Equal(t, "(Join G1 G2 (Eq (Col 1) (Col 3)))", inner[0].String())
	out := c.Apply(inner[0])
	require.Equal(t, "(Join commuted G2 G1 (Eq (Col 4) (Col 1)))", out.String())
	g, ok := m.AddExprToGroup(6, bindingExpr(m, out))
	require.True(t, ok)
	require.Equal(t, memo.GroupID(6), g)

	// The associativity pattern looks into G6 and finds both members.
	bindings := Bind(m, root, m.Members(root)[0], AssociateJoin.Pattern)
	require.Len(t, bindings, 2)
	require.Equal(t, "(Join (Join G1 G2 (Eq (Col 1) (Col 3))) G7 (Eq (Col 4) (Col 5)))", bindings[0].String())
	require.Equal(t, "(Join (Join commuted G2 G1 (Eq (Col 4) (Col 1))) G7 (Eq (Col 4) (Col 5)))", bindings[1].String())
	require.Equal(t, memo.GroupID(6), bindings[1].Child(0).Group())
	require.Equal(t, memo.GroupID(12), bindings[1].Child(0).Child(2).Group())

	require.Equal(t,
		"(Join G1 (Join G2 G7 (Eq (Col 2) (Col 3))) (Eq (Col 1) (Col 3)))",
		AssociateJoin.Apply(bindings[0]).String())
	// The commuted inner join lists b's columns first, so c2 cannot be
	// rewritten against its inputs.
	require.Nil(t, AssociateJoin.Apply(bindings[1]))

	// A pattern that does not match the member binds nothing.
	require.Empty(t, Bind(m, 6, m.Members(6)[0], AssociateJoin.Pattern))
	require.Empty(t, Bind(m, 1, m.Members(1)[0], CommuteJoin.Pattern))
}

func TestNewBinding(t *testing.T) {
	left := GroupRef(1, memo.LogicalProps{Width: 2})
	right := GroupRef(2, memo.LogicalProps{Width: memo.UnknownWidth})
	cond := NewBinding(opt.EqOp, 0, NewBinding(opt.ColumnRefOp, 0), NewBinding(opt.ConstOp, 3))

	j := NewBinding(opt.JoinOp, 0, left, left, cond)
	require.Equal(t, 4, j.Width())
	require.Equal(t, memo.GroupID(0), j.Group())
	require.Equal(t, memo.UnknownWidth, NewBinding(opt.JoinOp, 0, left, right, cond).Width())
	require.Equal(t, 2, NewBinding(opt.FilterOp, 0, left, cond).Width())
	require.Equal(t, int64(3), cond.Child(1).Value())
	require.Len(t, j.Children(), 3)

	require.Panics(t, func() { NewBinding(opt.JoinOp, 0, left, right) })
	require.Panics(t, func() { NewBinding(opt.JoinOp, 0, left, cond, right) })
	require.Panics(t, func() { NewBinding(opt.FilterOp, 0, left, nil) })
}
