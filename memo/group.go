package memo

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/opt"
)

// UnknownWidth is the width of a relational group whose schema cannot be
// derived, because it scans a table missing from the catalog.
const UnknownWidth = -1

// LogicalProps are the properties shared by every member of a group.
type LogicalProps struct {
	// Scalar is true for predicate groups.
	Scalar bool

	// Width is the number of output columns of a relational group, or
	// UnknownWidth. It is zero for scalar groups. Column references in a join
	// condition index into the left input's columns followed by the right
	// input's.
	Width int
}

func (p LogicalProps) String() string {
	switch {
	case p.Scalar:
		return "scalar"
	case p.Width == UnknownWidth:
		return "cols=?"
	default:
		return fmt.Sprintf("cols=%d", p.Width)
	}
}

// compatible returns false if the two property sets cannot describe the same
// expression.
func (p LogicalProps) compatible(other LogicalProps) bool {
	if p.Scalar != other.Scalar {
		return false
	}
	return p.Width == UnknownWidth || other.Width == UnknownWidth || p.Width == other.Width
}

// union combines the properties of two groups being merged, preferring a
// known width over an unknown one.
func (p LogicalProps) union(other LogicalProps) LogicalProps {
	if p.Width == UnknownWidth {
		p.Width = other.Width
	}
	return p
}

// parentRef records that a member of group references some group as a
// child. The expression is the member as it was when the reference was
// recorded; it is re-canonicalized when the child group is merged.
type parentRef struct {
	expr  Expr
	group GroupID
}

// group stores a set of logically equivalent expressions.
type group struct {
	// ID (a.k.a. index) of the group within the memo.
	id GroupID

	// forward is the group this one was merged into, or 0 if the group is
	// still canonical. Following forward links always ends at a canonical
	// group.
	forward GroupID

	// exprs holds the members in insertion order. The order is preserved
	// through merges (the surviving group's members come first) so that the
	// first member, which extraction uses, is reproducible.
	exprs []Expr

	props LogicalProps

	// parents lists the members of other groups that reference this group as a
	// child. Entries may be stale (reference since-merged children); they are
	// canonicalized when the group takes part in a merge.
	parents []parentRef

	// epoch is the memo version at which the group last changed (gained a
	// member, had a member re-canonicalized, or absorbed another group).
	epoch uint64
}

func (g *group) contains(e Expr) bool {
	for i := range g.exprs {
		if g.exprs[i] == e {
			return true
		}
	}
	return false
}

// deriveProps computes the logical properties of a memo expression from the
// properties of its children.
func (m *Memo) deriveProps(e Expr) LogicalProps {
	for i := 0; i < e.ChildCount(); i++ {
		child := m.groups[m.Find(e.children[i])]
		if child.props.Scalar != e.op.ChildIsScalar(i) {
			panic(errors.AssertionFailedf("%s child %d cannot be %s", e.op, i, child.props))
		}
	}

	switch e.op {
	case opt.ScanOp:
		if w, ok := m.catalog.TableWidth(e.Table()); ok {
			return LogicalProps{Width: w}
		}
		return LogicalProps{Width: UnknownWidth}

	case opt.JoinOp:
		l := m.groups[m.Find(e.children[0])].props.Width
		r := m.groups[m.Find(e.children[1])].props.Width
		if l == UnknownWidth || r == UnknownWidth {
			return LogicalProps{Width: UnknownWidth}
		}
		return LogicalProps{Width: l + r}

	case opt.FilterOp:
		return LogicalProps{Width: m.groups[m.Find(e.children[0])].props.Width}

	case opt.EqOp, opt.ColumnRefOp, opt.ConstOp:
		return LogicalProps{Scalar: true}

	default:
		panic(errors.AssertionFailedf("unhandled operator: %s", e.op))
	}
}
