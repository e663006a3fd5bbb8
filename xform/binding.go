package xform

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/cat"
	"github.com/petermattis/memotoy/memo"
	"github.com/petermattis/memotoy/opt"
)

// Binding is a partial tree extracted from the memo. Each node is either a
// concrete operator bound to a memo expression (or created by a rule), or a
// group reference standing for any member of a group. Rules consume and
// produce bindings; the explorer converts their output back into memo
// expressions, resolving group references to the groups themselves.
type Binding struct {
	op       opt.Operator
	private  int64
	children []*Binding

	// group is the memo group the node was bound from, or 0 for nodes created
	// by a rule.
	group memo.GroupID
	props memo.LogicalProps
	ref   bool
}

// GroupRef returns a binding that stands for the whole group.
func GroupRef(group memo.GroupID, props memo.LogicalProps) *Binding {
	return &Binding{group: group, props: props, ref: true}
}

// NewBinding constructs a concrete node, deriving its properties from its
// children. It panics if the children do not fit the operator.
func NewBinding(op opt.Operator, private int64, children ...*Binding) *Binding {
	if !op.Valid() {
		panic(errors.AssertionFailedf("unknown operator: %d", errors.Safe(uint8(op))))
	}
	if len(children) != op.Arity() {
		panic(errors.AssertionFailedf("%s expects %d children, found %d", op, op.Arity(), len(children)))
	}
	if err := opt.CheckPayload(op, private); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "invalid %s binding", op))
	}
	for i, c := range children {
		if c == nil {
			panic(errors.AssertionFailedf("%s child %d is missing", op, i))
		}
		if c.props.Scalar != op.ChildIsScalar(i) {
			panic(errors.AssertionFailedf("%s child %d cannot be %s", op, i, c.props))
		}
	}
	b := &Binding{op: op, private: private, children: children}
	switch {
	case op.IsScalar():
		b.props = memo.LogicalProps{Scalar: true}
	case op == opt.ScanOp:
		// Scan widths come from the catalog, which rules never consult.
		b.props = memo.LogicalProps{Width: memo.UnknownWidth}
	case op == opt.JoinOp:
		l, r := children[0].Width(), children[1].Width()
		if l == memo.UnknownWidth || r == memo.UnknownWidth {
			b.props = memo.LogicalProps{Width: memo.UnknownWidth}
		} else {
			b.props = memo.LogicalProps{Width: l + r}
		}
	case op == opt.FilterOp:
		b.props = memo.LogicalProps{Width: children[0].Width()}
	}
	return b
}

// IsGroupRef returns true for a binding that stands for a whole group.
func (b *Binding) IsGroupRef() bool {
	return b.ref
}

// Op returns the operator of a concrete node, or opt.UnknownOp for a group
// reference.
func (b *Binding) Op() opt.Operator {
	return b.op
}

func (b *Binding) Private() int64 {
	return b.private
}

func (b *Binding) Table() cat.TableID {
	return opt.TableOf(b.op, b.private)
}

func (b *Binding) Column() int {
	return opt.ColumnOf(b.op, b.private)
}

func (b *Binding) Value() int64 {
	return opt.ValueOf(b.op, b.private)
}

func (b *Binding) JoinFlags() opt.JoinFlags {
	return opt.JoinFlagsOf(b.op, b.private)
}

// Group returns the memo group the node was bound from, or 0 if a rule
// created it.
func (b *Binding) Group() memo.GroupID {
	return b.group
}

func (b *Binding) Props() memo.LogicalProps {
	return b.props
}

// Width returns the number of output columns, or memo.UnknownWidth.
func (b *Binding) Width() int {
	return b.props.Width
}

func (b *Binding) ChildCount() int {
	return len(b.children)
}

func (b *Binding) Child(nth int) *Binding {
	return b.children[nth]
}

// Children returns a copy of the children slice.
func (b *Binding) Children() []*Binding {
	return append([]*Binding(nil), b.children...)
}

// IsConcrete returns true if the binding contains no group references.
func (b *Binding) IsConcrete() bool {
	if b.ref {
		return false
	}
	for _, c := range b.children {
		if !c.IsConcrete() {
			return false
		}
	}
	return true
}

// String formats the binding as an S-expression in which group references
// appear as group IDs: "(Join G1 G2 (Eq (Col 0) (Col 2)))".
func (b *Binding) String() string {
	var buf bytes.Buffer
	b.format(&buf)
	return buf.String()
}

func (b *Binding) format(buf *bytes.Buffer) {
	if b.ref {
		buf.WriteString(b.group.String())
		return
	}
	fmt.Fprintf(buf, "(%s", b.op)
	if p := opt.FormatPayload(b.op, b.private); p != "" {
		buf.WriteByte(' ')
		buf.WriteString(p)
	}
	for _, c := range b.children {
		buf.WriteByte(' ')
		c.format(buf)
	}
	buf.WriteByte(')')
}

// BuildBinding returns a binding for the group that follows the first member
// of each group down to the given depth. Groups below that depth are
// represented by group references. A depth of 0 returns a reference to the
// group itself.
func BuildBinding(m *memo.Memo, group memo.GroupID, depth int) *Binding {
	group = m.Find(group)
	if depth <= 0 {
		return GroupRef(group, m.Props(group))
	}
	first := m.Members(group)[0]
	children := make([]*Binding, first.ChildCount())
	for i := range children {
		children[i] = BuildBinding(m, first.Child(i), depth-1)
	}
	return bindNode(m, group, first, children)
}

// bindNode returns the concrete binding of a memo expression that belongs to
// group.
func bindNode(m *memo.Memo, group memo.GroupID, e memo.Expr, children []*Binding) *Binding {
	return &Binding{
		op:       e.Op(),
		private:  e.Private(),
		children: children,
		group:    group,
		props:    m.Props(group),
	}
}

// addBinding adds the nodes of a binding to the memo and returns the group of
// its root. Group references resolve to their group.
func addBinding(m *memo.Memo, b *Binding) memo.GroupID {
	if b.ref {
		return m.Find(b.group)
	}
	return m.AddExpr(bindingExpr(m, b))
}

// bindingExpr converts the root of a binding into a memo expression, adding
// its children to the memo.
func bindingExpr(m *memo.Memo, b *Binding) memo.Expr {
	if b.ref {
		panic(errors.AssertionFailedf("cannot convert group reference %s", b.group))
	}
	children := make([]memo.GroupID, len(b.children))
	for i, c := range b.children {
		children[i] = addBinding(m, c)
	}
	return memo.MakeExpr(b.op, b.private, children...)
}
