package memo

import (
	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/cat"
	"github.com/petermattis/memotoy/opt"
	"go.uber.org/zap"
)

// Memo is a forest of equivalent expressions. Structurally identical
// expressions are stored once (hash-consing), and expressions known to
// produce the same result are kept together in a group. Groups are merged
// when exploration discovers that two of them are equivalent; merging
// re-canonicalizes the expressions that reference the merged groups and
// merges any that become identical (congruence closure) before returning.
//
// Every exported method leaves the memo consistent. Group IDs handed out are
// stable but must be compared through Find, since two IDs may come to denote
// the same group.
//
// A Memo is not safe for concurrent use. Find, Members, Props and Extract do
// not modify the memo, so callers may share it between readers as long as
// all mutation is serialized.
type Memo struct {
	catalog *cat.Catalog
	logger  *zap.Logger

	// The slice of groups, indexed by group ID. Group ID 0 is invalid in order
	// to allow zero initialization of a child slot to indicate that it is
	// unused.
	groups []*group

	// exprMap is the hash-consing table: it maps a memo expression to the group
	// that contains it. Values must be resolved through Find. Keys are kept
	// canonical: when a child group is merged, the stale key is replaced.
	exprMap map[Expr]GroupID

	// live is the number of canonical groups.
	live int

	// version is incremented on every change to the memo.
	version uint64

	// pending holds pairs of groups that congruence closure has found to be
	// equivalent but that have not been merged yet.
	pending [][2]GroupID
}

// New returns an empty memo. The catalog supplies scan widths; it may be nil,
// in which case every relational group has UnknownWidth.
func New(catalog *cat.Catalog) *Memo {
	return &Memo{
		catalog: catalog,
		logger:  zap.NewNop(),
		groups:  make([]*group, 1),
		exprMap: make(map[Expr]GroupID),
	}
}

// SetLogger sets the logger used to trace merges.
func (m *Memo) SetLogger(logger *zap.Logger) {
	m.logger = logger
}

func (m *Memo) Catalog() *cat.Catalog {
	return m.catalog
}

// Find returns the canonical ID of the group identified by id.
func (m *Memo) Find(id GroupID) GroupID {
	if id == 0 || int(id) >= len(m.groups) {
		panic(errors.AssertionFailedf("unknown group: %s", id))
	}
	for {
		fwd := m.groups[id].forward
		if fwd == 0 {
			return id
		}
		id = fwd
	}
}

// NumGroups returns the number of distinct (canonical) groups.
func (m *Memo) NumGroups() int {
	return m.live
}

// Groups returns the IDs of the canonical groups in ascending order.
func (m *Memo) Groups() []GroupID {
	res := make([]GroupID, 0, m.live)
	for _, g := range m.groups[1:] {
		if g.forward == 0 {
			res = append(res, g.id)
		}
	}
	return res
}

// Members returns the members of the group in insertion order.
func (m *Memo) Members(id GroupID) []Expr {
	return append([]Expr(nil), m.groups[m.Find(id)].exprs...)
}

// Props returns the logical properties of the group.
func (m *Memo) Props(id GroupID) LogicalProps {
	return m.groups[m.Find(id)].props
}

// Version returns a counter that increases every time the memo changes.
func (m *Memo) Version() uint64 {
	return m.version
}

// Epoch returns the memo version at which the group last changed.
func (m *Memo) Epoch(id GroupID) uint64 {
	return m.groups[m.Find(id)].epoch
}

// Lookup returns the group containing the expression, if any.
func (m *Memo) Lookup(e Expr) (GroupID, bool) {
	id, ok := m.exprMap[m.canonicalize(e)]
	if !ok {
		return 0, false
	}
	return m.Find(id), true
}

// Memorize adds a concrete expression tree to the memo, bottom up, and
// returns the group of its root. Sub-trees that are already present are
// reused, so memorizing the same tree twice returns the same group without
// growing the memo.
func (m *Memo) Memorize(e *opt.Expr) GroupID {
	var children [opt.MaxChildren]GroupID
	for i := 0; i < e.ChildCount(); i++ {
		children[i] = m.Memorize(e.Child(i))
	}
	return m.AddExpr(Expr{op: e.Op(), private: e.Private(), children: children})
}

// AddExpr returns the group containing the memo expression, creating a new
// group for it if it is not present yet.
func (m *Memo) AddExpr(e Expr) GroupID {
	e = m.canonicalize(e)
	if id, ok := m.exprMap[e]; ok {
		return m.Find(id)
	}
	return m.newGroup(e)
}

// AddExprToGroup adds the memo expression to an existing group, as an
// alternative to the group's current members. If the expression already
// belongs to another group, the two groups are merged. The returned ID is
// the canonical ID of the group now containing the expression.
//
// The memo must remain acyclic, so the expression is rejected (and false
// returned, with the memo unchanged) if one of its children is the group
// itself or one of its ancestors, or if it belongs to an ancestor or
// descendant of the group.
func (m *Memo) AddExprToGroup(id GroupID, e Expr) (GroupID, bool) {
	id = m.Find(id)
	e = m.canonicalize(e)

	if existing, ok := m.exprMap[e]; ok {
		existing = m.Find(existing)
		if existing == id {
			return id, true
		}
		if m.reaches(existing, id) || m.reaches(id, existing) {
			m.logger.Debug("rejected merge that would create a cycle",
				zap.Stringer("group", id), zap.Stringer("expr", e), zap.Stringer("existing", existing))
			return id, false
		}
		return m.MergeGroups(id, existing), true
	}

	for i := 0; i < e.ChildCount(); i++ {
		if m.reaches(e.children[i], id) {
			m.logger.Debug("rejected expression that would create a cycle",
				zap.Stringer("group", id), zap.Stringer("expr", e))
			return id, false
		}
	}

	g := m.groups[id]
	if props := m.deriveProps(e); !props.compatible(g.props) {
		panic(errors.AssertionFailedf("cannot add %s with %s to %s with %s", e, props, id, g.props))
	}

	g.exprs = append(g.exprs, e)
	m.exprMap[e] = id
	m.addParentRefs(e, id)
	m.touch(g)
	return id, true
}

func (m *Memo) newGroup(e Expr) GroupID {
	props := m.deriveProps(e)
	id := GroupID(len(m.groups))
	g := &group{id: id, exprs: []Expr{e}, props: props}
	m.groups = append(m.groups, g)
	m.exprMap[e] = id
	m.live++
	m.addParentRefs(e, id)
	m.touch(g)
	return id
}

func (m *Memo) touch(g *group) {
	m.version++
	g.epoch = m.version
}

// addParentRefs records e, a member of group id, as a parent of each of its
// (canonical) children.
func (m *Memo) addParentRefs(e Expr, id GroupID) {
	for i := 0; i < e.ChildCount(); i++ {
		c := e.children[i]
		dup := false
		for j := 0; j < i; j++ {
			if e.children[j] == c {
				dup = true
				break
			}
		}
		if !dup {
			child := m.groups[c]
			child.parents = append(child.parents, parentRef{expr: e, group: id})
		}
	}
}

// canonicalize replaces every child of e by its canonical group ID.
func (m *Memo) canonicalize(e Expr) Expr {
	if !e.op.Valid() {
		panic(errors.AssertionFailedf("unknown operator: %d", errors.Safe(uint8(e.op))))
	}
	for i := 0; i < e.ChildCount(); i++ {
		e.children[i] = m.Find(e.children[i])
	}
	return e
}
