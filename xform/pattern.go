package xform

import (
	"github.com/petermattis/memotoy/memo"
	"github.com/petermattis/memotoy/opt"
)

// Pattern describes the part of an expression a rule needs to see. A pattern
// node matches memo expressions with the same operator; its children are
// matched against the corresponding child groups. A nil child (or a missing
// Children slice) matches any group and is bound as a group reference, so the
// rule does not care about that input. TreePattern requests the complete
// sub-tree, following the first member of each group; rules that need to
// inspect or rewrite a predicate use it. For example, join commutativity only
// reorders the inputs but must remap the condition:
//
//   &Pattern{Op: opt.JoinOp, Children: []*Pattern{nil, nil, TreePattern}}
//
// Join associativity wants a join whose left input is also a join:
//
//   &Pattern{Op: opt.JoinOp, Children: []*Pattern{
//     {Op: opt.JoinOp, Children: []*Pattern{nil, nil, TreePattern}},
//     nil,
//     TreePattern,
//   }}
type Pattern struct {
	Op       opt.Operator
	Children []*Pattern
	Tree     bool
}

// TreePattern matches any group and binds it to its fully materialized tree.
var TreePattern = &Pattern{Tree: true}

func (p *Pattern) child(nth int) *Pattern {
	if nth < len(p.Children) {
		return p.Children[nth]
	}
	return nil
}

// Bind returns a binding for every way the member of group can match the
// pattern. Every member of a child group that matches its sub-pattern
// produces a separate binding, so a member whose children hold several
// alternatives can produce many bindings. Wildcard children are bound as
// group references and do not multiply the result.
func Bind(m *memo.Memo, group memo.GroupID, member memo.Expr, pattern *Pattern) []*Binding {
	return bindExpr(m, m.Find(group), member, pattern)
}

func bindGroup(m *memo.Memo, group memo.GroupID, pattern *Pattern) []*Binding {
	group = m.Find(group)
	if pattern == nil {
		return []*Binding{GroupRef(group, m.Props(group))}
	}
	if pattern.Tree {
		return []*Binding{bindTree(m, group)}
	}
	var res []*Binding
	for _, e := range m.Members(group) {
		res = append(res, bindExpr(m, group, e, pattern)...)
	}
	return res
}

func bindExpr(m *memo.Memo, group memo.GroupID, e memo.Expr, pattern *Pattern) []*Binding {
	if pattern.Tree {
		return []*Binding{bindTree(m, group)}
	}
	if e.Op() != pattern.Op {
		return nil
	}

	// Bind each child, then emit the cross product of the alternatives.
	alternatives := make([][]*Binding, e.ChildCount())
	for i := range alternatives {
		alternatives[i] = bindGroup(m, e.Child(i), pattern.child(i))
		if len(alternatives[i]) == 0 {
			return nil
		}
	}

	var res []*Binding
	children := make([]*Binding, len(alternatives))
	var walk func(i int)
	walk = func(i int) {
		if i == len(alternatives) {
			res = append(res, bindNode(m, group, e, append([]*Binding(nil), children...)))
			return
		}
		for _, alt := range alternatives[i] {
			children[i] = alt
			walk(i + 1)
		}
	}
	walk(0)
	return res
}

// bindTree materializes the group by following the first member of each
// group.
func bindTree(m *memo.Memo, group memo.GroupID) *Binding {
	group = m.Find(group)
	first := m.Members(group)[0]
	children := make([]*Binding, first.ChildCount())
	for i := range children {
		children[i] = bindTree(m, first.Child(i))
	}
	return bindNode(m, group, first, children)
}

// dependencyEpoch returns the latest epoch of the groups whose members the
// pattern can bind when it is matched against member. If no group under the
// pattern changes, matching the member again produces the same bindings.
func dependencyEpoch(m *memo.Memo, member memo.Expr, pattern *Pattern) uint64 {
	var epoch uint64
	for i := 0; i < member.ChildCount(); i++ {
		if e := groupEpoch(m, member.Child(i), pattern.child(i)); e > epoch {
			epoch = e
		}
	}
	return epoch
}

func groupEpoch(m *memo.Memo, group memo.GroupID, pattern *Pattern) uint64 {
	if pattern == nil {
		return 0
	}
	epoch := m.Epoch(group)
	if pattern.Tree {
		first := m.Members(group)[0]
		for i := 0; i < first.ChildCount(); i++ {
			if e := groupEpoch(m, first.Child(i), pattern); e > epoch {
				epoch = e
			}
		}
		return epoch
	}
	for _, e := range m.Members(group) {
		if e.Op() != pattern.Op {
			continue
		}
		if d := dependencyEpoch(m, e, pattern); d > epoch {
			epoch = d
		}
	}
	return epoch
}
