package memo

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/opt"
)

// Extract returns a concrete tree for the group, built from the first member
// of each group recursively. Shared groups are extracted once and the
// resulting sub-tree is shared.
func (m *Memo) Extract(id GroupID) *opt.Expr {
	x := extractor{
		m:        m,
		cache:    make(map[GroupID]*opt.Expr),
		visiting: bitset.New(uint(len(m.groups))),
	}
	return x.extract(m.Find(id))
}

type extractor struct {
	m        *Memo
	cache    map[GroupID]*opt.Expr
	visiting *bitset.BitSet
}

func (x *extractor) extract(id GroupID) *opt.Expr {
	if e, ok := x.cache[id]; ok {
		return e
	}
	if x.visiting.Test(uint(id)) {
		panic(errors.AssertionFailedf("cycle through %s", id))
	}
	x.visiting.Set(uint(id))

	g := x.m.groups[id]
	if len(g.exprs) == 0 {
		panic(errors.AssertionFailedf("%s is empty", id))
	}
	first := g.exprs[0]
	children := make([]*opt.Expr, first.ChildCount())
	for i := range children {
		children[i] = x.extract(x.m.Find(first.children[i]))
	}
	e, err := opt.NewExpr(first.op, first.private, children...)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "extracting %s", id))
	}

	x.visiting.Clear(uint(id))
	x.cache[id] = e
	return e
}
