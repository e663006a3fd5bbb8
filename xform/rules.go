package xform

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/cat"
	"github.com/petermattis/memotoy/memo"
	"github.com/petermattis/memotoy/opt"
)

// Rule is an exploration rule. The explorer binds Pattern against memo
// expressions and calls Apply with each binding; Apply returns an equivalent
// binding, or nil if the rule does not apply. Apply must not modify its
// argument.
//
// Every member of a group produces the same columns in the same order.
// Column references in a join condition index into the concatenation of the
// first and second inputs' columns, and a join outputs that concatenation
// unless it is commuted (see opt.JoinCommuted). Rules that reorder join
// inputs remap the references using the inputs' widths, and do not apply
// when a width they need is unknown.
type Rule struct {
	Name    string
	Pattern *Pattern
	Apply   func(b *Binding) *Binding
}

// CommuteJoin swaps the inputs of a join and toggles its commuted flag, which
// keeps the output columns in place:
//
//   (Join l r c)           => (Join commuted r l c')
//   (Join commuted r l c') => (Join l r c)
//
// where c' refers to the same columns as c in the swapped input schema.
var CommuteJoin = Rule{
	Name: "CommuteJoin",
	Pattern: &Pattern{
		Op:       opt.JoinOp,
		Children: []*Pattern{nil, nil, TreePattern},
	},
	Apply: commuteJoin,
}

// AssociateJoin rotates a left-deep join to the right:
//
//   (Join (Join x y c1) z c2) => (Join x (Join y z c2') c1)
//
// Both sides output the columns of x, y and z in that order. c1 only refers
// to columns of x and y, which keep their positions. c2 is shifted to the
// schema of the new inner join; if it refers to a column of x it cannot be
// evaluated there and the rule does not apply. Commuted joins output their
// inputs out of order, so the rule does not apply to them either.
var AssociateJoin = Rule{
	Name: "AssociateJoin",
	Pattern: &Pattern{
		Op: opt.JoinOp,
		Children: []*Pattern{
			{Op: opt.JoinOp, Children: []*Pattern{nil, nil, TreePattern}},
			nil,
			TreePattern,
		},
	},
	Apply: associateJoin,
}

var allRules = []Rule{CommuteJoin, AssociateJoin}

// DefaultRules returns the rules the explorer uses when no rule set is
// configured.
func DefaultRules() []Rule {
	return append([]Rule(nil), allRules...)
}

// RuleByName returns the rule with the given name.
func RuleByName(name string) (Rule, bool) {
	for _, r := range allRules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// RuleNames returns the names of all known rules, sorted.
func RuleNames() []string {
	names := make([]string, len(allRules))
	for i, r := range allRules {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}

func commuteJoin(b *Binding) *Binding {
	if b.IsGroupRef() || b.Op() != opt.JoinOp {
		return nil
	}
	first, second, cond := b.Child(0), b.Child(1), b.Child(2)
	fw, sw := first.Width(), second.Width()
	if fw == memo.UnknownWidth || sw == memo.UnknownWidth {
		return nil
	}
	newCond, ok := remapColumns(cond, func(i int) (int, bool) {
		switch {
		case i < 0:
			return 0, false
		case i < fw:
			return i + sw, true
		case i < fw+sw:
			return i - fw, true
		default:
			return 0, false
		}
	})
	if !ok {
		return nil
	}
	flags := b.JoinFlags() ^ opt.JoinCommuted
	return NewBinding(opt.JoinOp, int64(flags), second, first, newCond)
}

func associateJoin(b *Binding) *Binding {
	if b.IsGroupRef() || b.Op() != opt.JoinOp || b.JoinFlags().Commuted() {
		return nil
	}
	inner := b.Child(0)
	if inner.IsGroupRef() || inner.Op() != opt.JoinOp || inner.JoinFlags().Commuted() {
		return nil
	}
	z, c2 := b.Child(1), b.Child(2)
	x, y, c1 := inner.Child(0), inner.Child(1), inner.Child(2)
	xw, yw, zw := x.Width(), y.Width(), z.Width()
	if xw == memo.UnknownWidth || yw == memo.UnknownWidth || zw == memo.UnknownWidth {
		return nil
	}
	newC2, ok := remapColumns(c2, func(i int) (int, bool) {
		if i < xw || i >= xw+yw+zw {
			return 0, false
		}
		return i - xw, true
	})
	if !ok {
		return nil
	}
	return NewBinding(opt.JoinOp, 0, x, NewBinding(opt.JoinOp, 0, y, z, newC2), c1)
}

// remapColumns returns a copy of the predicate with every column reference
// translated by fn. It fails if the predicate is not fully materialized or if
// fn rejects a column.
func remapColumns(b *Binding, fn func(int) (int, bool)) (*Binding, bool) {
	if b.IsGroupRef() {
		return nil, false
	}
	switch b.Op() {
	case opt.ColumnRefOp:
		i, ok := fn(b.Column())
		if !ok {
			return nil, false
		}
		return NewBinding(opt.ColumnRefOp, int64(i)), true

	case opt.ConstOp:
		return b, true
	}

	children := make([]*Binding, b.ChildCount())
	for i := range children {
		c, ok := remapColumns(b.Child(i), fn)
		if !ok {
			return nil, false
		}
		children[i] = c
	}
	return NewBinding(b.Op(), b.Private(), children...), true
}

// RewriteExpr applies the rule once to every node of the tree that matches its
// pattern, bottom up, and returns the rewritten tree. Scan widths are taken
// from the catalog. The input tree is not modified.
func RewriteExpr(catalog *cat.Catalog, e *opt.Expr, rule Rule) *opt.Expr {
	return opt.ApplyBottomUp(e, func(e *opt.Expr) *opt.Expr {
		if e.Op() != rule.Pattern.Op {
			return nil
		}
		b := treeBinding(catalog, e)
		if !matchTree(b, rule.Pattern) {
			return nil
		}
		res := rule.Apply(b)
		if res == nil {
			return nil
		}
		return bindingTree(res)
	})
}

// treeBinding converts a concrete tree into a binding.
func treeBinding(catalog *cat.Catalog, e *opt.Expr) *Binding {
	if e.Op() == opt.ScanOp {
		props := memo.LogicalProps{Width: memo.UnknownWidth}
		if w, ok := catalog.TableWidth(e.Table()); ok {
			props.Width = w
		}
		return &Binding{op: opt.ScanOp, private: e.Private(), props: props}
	}
	children := make([]*Binding, e.ChildCount())
	for i := range children {
		children[i] = treeBinding(catalog, e.Child(i))
	}
	return NewBinding(e.Op(), e.Private(), children...)
}

func matchTree(b *Binding, p *Pattern) bool {
	if p == nil || p.Tree {
		return true
	}
	if b.Op() != p.Op {
		return false
	}
	for i := 0; i < b.ChildCount(); i++ {
		if !matchTree(b.Child(i), p.child(i)) {
			return false
		}
	}
	return true
}

// bindingTree converts a concrete binding back into a tree.
func bindingTree(b *Binding) *opt.Expr {
	if b.IsGroupRef() {
		panic(errors.AssertionFailedf("cannot convert group reference %s to a tree", b.Group()))
	}
	children := make([]*opt.Expr, b.ChildCount())
	for i := range children {
		children[i] = bindingTree(b.Child(i))
	}
	e, err := opt.NewExpr(b.Op(), b.Private(), children...)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "converting %s", b))
	}
	return e
}
