package memo

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// MergeGroups records that groups a and b are equivalent and merges them. The
// group with the lower ID survives, so MergeGroups(a, b) and MergeGroups(b, a)
// produce the same memo. Expressions that reference the absorbed group are
// re-canonicalized; if that makes two of them identical, their groups are
// merged in turn, until no such collision remains. The canonical ID of the
// merged group is returned.
//
// Merging a group with one of its descendants would make the memo cyclic and
// is an invariant violation, as is merging a scalar group with a relational
// one or two relational groups of different width.
func (m *Memo) MergeGroups(a, b GroupID) GroupID {
	a, b = m.Find(a), m.Find(b)
	if a == b {
		return a
	}
	if m.reaches(a, b) || m.reaches(b, a) {
		panic(errors.AssertionFailedf("cannot merge %s and %s: one contains the other", a, b))
	}
	m.pending = append(m.pending, [2]GroupID{a, b})
	m.rebuild()
	return m.Find(a)
}

// rebuild drains the pending merge list. Every union may uncover new pairs of
// congruent expressions, which are pushed back onto the list.
func (m *Memo) rebuild() {
	for len(m.pending) > 0 {
		n := len(m.pending) - 1
		pair := m.pending[n]
		m.pending = m.pending[:n]

		a, b := m.Find(pair[0]), m.Find(pair[1])
		if a == b {
			continue
		}
		m.union(a, b)
	}
}

// union merges two canonical groups and repairs the expressions that
// referenced the absorbed one.
func (m *Memo) union(a, b GroupID) {
	if a > b {
		a, b = b, a
	}
	// Congruence can equate a group with one of its descendants even when the
	// groups passed to MergeGroups are unrelated.
	if m.reaches(a, b) || m.reaches(b, a) {
		panic(errors.AssertionFailedf("cannot merge %s and %s: one contains the other", a, b))
	}
	winner, loser := m.groups[a], m.groups[b]
	if !winner.props.compatible(loser.props) {
		panic(errors.AssertionFailedf("cannot merge %s with %s into %s with %s",
			loser.id, loser.props, winner.id, winner.props))
	}

	m.logger.Debug("merging groups", zap.Stringer("into", winner.id), zap.Stringer("from", loser.id))

	winner.props = winner.props.union(loser.props)
	loser.forward = winner.id
	m.live--

	for _, e := range loser.exprs {
		if !winner.contains(e) {
			winner.exprs = append(winner.exprs, e)
		}
		m.exprMap[e] = winner.id
	}
	loser.exprs = nil

	moved := loser.parents
	loser.parents = nil
	winner.parents = m.normalizeParents(append(winner.parents, moved...))
	m.touch(winner)

	for _, ref := range moved {
		m.repairParent(ref)
	}
}

// normalizeParents canonicalizes the parent references and removes
// duplicates, preserving order.
func (m *Memo) normalizeParents(refs []parentRef) []parentRef {
	seen := make(map[parentRef]struct{}, len(refs))
	out := refs[:0]
	for _, ref := range refs {
		ref = parentRef{expr: m.canonicalize(ref.expr), group: m.Find(ref.group)}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// repairParent re-canonicalizes the member that ref points at. If the
// canonical form already belongs to a different group, the two groups are
// congruent and are queued for merging.
func (m *Memo) repairParent(ref parentRef) {
	canon := m.canonicalize(ref.expr)
	owner := m.Find(ref.group)
	m.replaceMember(owner, canon)

	if existing, ok := m.exprMap[canon]; ok {
		if existing = m.Find(existing); existing != owner {
			m.logger.Debug("found congruent expressions",
				zap.Stringer("expr", canon), zap.Stringer("group", owner), zap.Stringer("other", existing))
			m.pending = append(m.pending, [2]GroupID{existing, owner})
			return
		}
	}
	m.exprMap[canon] = owner
}

// replaceMember replaces every member of the group whose canonical form is
// canon with canon itself. Members that collapse onto the same canonical
// form are deduplicated, keeping the position of the first one.
func (m *Memo) replaceMember(id GroupID, canon Expr) {
	g := m.groups[id]
	found, changed := false, false
	out := g.exprs[:0]
	for _, e := range g.exprs {
		if m.canonicalize(e) != canon {
			out = append(out, e)
			continue
		}
		if e != canon {
			delete(m.exprMap, e)
			changed = true
		}
		if found {
			changed = true
			continue
		}
		found = true
		out = append(out, canon)
	}
	g.exprs = out
	if !found {
		panic(errors.AssertionFailedf("%s does not contain %s", id, canon))
	}
	if changed {
		m.touch(g)
	}
}
