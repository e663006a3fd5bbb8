package memo

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

// reaches returns true if group to is from or one of its descendants.
func (m *Memo) reaches(from, to GroupID) bool {
	from, to = m.Find(from), m.Find(to)
	if from == to {
		return true
	}
	visited := bitset.New(uint(len(m.groups)))
	stack := []GroupID{from}
	visited.Set(uint(from))
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range m.groups[id].exprs {
			for i := 0; i < e.ChildCount(); i++ {
				c := m.Find(e.children[i])
				if c == to {
					return true
				}
				if !visited.Test(uint(c)) {
					visited.Set(uint(c))
					stack = append(stack, c)
				}
			}
		}
	}
	return false
}

// CheckInvariants verifies the structural invariants of the memo and returns
// an assertion failure describing the first violation found:
//
//   - every canonical group is non-empty and its members have canonical
//     children of the right kind;
//   - every member is registered in the hash-consing table under its own
//     group, and no expression belongs to two groups;
//   - every key of the hash-consing table is canonical and is a member of the
//     group it maps to;
//   - merged groups are empty and forward to a live group;
//   - the group graph is acyclic.
func (m *Memo) CheckInvariants() error {
	live := 0
	for _, g := range m.groups[1:] {
		if g.forward != 0 {
			if len(g.exprs) != 0 || len(g.parents) != 0 {
				return errors.AssertionFailedf("merged group %s still has members", g.id)
			}
			if g.forward >= g.id {
				return errors.AssertionFailedf("%s forwards to newer group %s", g.id, g.forward)
			}
			continue
		}
		live++
		if len(g.exprs) == 0 {
			return errors.AssertionFailedf("%s is empty", g.id)
		}
		for _, e := range g.exprs {
			for i := 0; i < e.ChildCount(); i++ {
				c := e.children[i]
				if c == 0 || int(c) >= len(m.groups) || m.groups[c].forward != 0 {
					return errors.AssertionFailedf("%s member %s has non-canonical child %s", g.id, e, c)
				}
				if m.groups[c].props.Scalar != e.op.ChildIsScalar(i) {
					return errors.AssertionFailedf("%s member %s has child %s of the wrong kind", g.id, e, c)
				}
			}
			owner, ok := m.exprMap[e]
			if !ok {
				return errors.AssertionFailedf("%s member %s is not interned", g.id, e)
			}
			if m.Find(owner) != g.id {
				return errors.AssertionFailedf("%s member %s is interned in %s", g.id, e, m.Find(owner))
			}
		}
	}
	if live != m.live {
		return errors.AssertionFailedf("found %d live groups, expected %d", live, m.live)
	}

	for e, id := range m.exprMap {
		if e != m.canonicalize(e) {
			return errors.AssertionFailedf("interned expression %s is not canonical", e)
		}
		if !m.groups[m.Find(id)].contains(e) {
			return errors.AssertionFailedf("interned expression %s is missing from %s", e, m.Find(id))
		}
	}

	return m.checkAcyclic()
}

// checkAcyclic runs a depth-first search over the canonical groups, looking
// for a back edge.
func (m *Memo) checkAcyclic() error {
	n := uint(len(m.groups))
	onStack := bitset.New(n)
	done := bitset.New(n)

	var visit func(id GroupID) error
	visit = func(id GroupID) error {
		if done.Test(uint(id)) {
			return nil
		}
		if onStack.Test(uint(id)) {
			return errors.AssertionFailedf("cycle through %s", id)
		}
		onStack.Set(uint(id))
		for _, e := range m.groups[id].exprs {
			for i := 0; i < e.ChildCount(); i++ {
				if err := visit(m.Find(e.children[i])); err != nil {
					return err
				}
			}
		}
		onStack.Clear(uint(id))
		done.Set(uint(id))
		return nil
	}

	for _, id := range m.Groups() {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
