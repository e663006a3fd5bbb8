package opt

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/cat"
	"github.com/petermattis/memotoy/util/treeprinter"
)

// Expr is a concrete relational or scalar expression tree. It is immutable
// after construction, so sub-trees may be shared between several parents.
type Expr struct {
	op       Operator
	private  int64
	children []*Expr
}

// NewExpr constructs an expression, checking that the operator is known,
// that the number of children matches its arity and that every child is of
// the expected kind (relational or scalar).
func NewExpr(op Operator, private int64, children ...*Expr) (*Expr, error) {
	if !op.Valid() {
		return nil, errors.Newf("unknown operator: %d", errors.Safe(uint8(op)))
	}
	if len(children) != op.Arity() {
		return nil, errors.Newf("%s expects %d children, found %d", op, op.Arity(), len(children))
	}
	if err := CheckPayload(op, private); err != nil {
		return nil, err
	}
	for i, c := range children {
		if c == nil {
			return nil, errors.Newf("%s child %d is missing", op, i)
		}
		if c.op.IsScalar() != op.ChildIsScalar(i) {
			return nil, errors.Newf("%s child %d cannot be %s", op, i, c.op)
		}
	}

	e := &Expr{op: op, private: private}
	if len(children) > 0 {
		e.children = append([]*Expr(nil), children...)
	}
	return e, nil
}

func mustExpr(op Operator, private int64, children ...*Expr) *Expr {
	e, err := NewExpr(op, private, children...)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "invalid %s expression", op))
	}
	return e
}

func Scan(table cat.TableID) *Expr {
	return mustExpr(ScanOp, int64(table))
}

func Join(left, right, cond *Expr) *Expr {
	return mustExpr(JoinOp, 0, left, right, cond)
}

// CommutedJoin returns a join whose output lists the right input's columns
// before the left input's. See JoinCommuted.
func CommutedJoin(left, right, cond *Expr) *Expr {
	return mustExpr(JoinOp, int64(JoinCommuted), left, right, cond)
}

func Filter(input, predicate *Expr) *Expr {
	return mustExpr(FilterOp, 0, input, predicate)
}

func Eq(left, right *Expr) *Expr {
	return mustExpr(EqOp, 0, left, right)
}

// ColumnRef references a column by its absolute position in the input
// schema. For a join condition the schema is the left input's columns
// followed by the right input's columns.
func ColumnRef(index int) *Expr {
	return mustExpr(ColumnRefOp, int64(index))
}

func Const(value int64) *Expr {
	return mustExpr(ConstOp, value)
}

func (e *Expr) Op() Operator {
	return e.op
}

// Private returns the raw payload. Prefer Table, Column or Value.
func (e *Expr) Private() int64 {
	return e.private
}

func (e *Expr) Table() cat.TableID {
	return TableOf(e.op, e.private)
}

func (e *Expr) Column() int {
	return ColumnOf(e.op, e.private)
}

func (e *Expr) Value() int64 {
	return ValueOf(e.op, e.private)
}

func (e *Expr) JoinFlags() JoinFlags {
	return JoinFlagsOf(e.op, e.private)
}

func (e *Expr) ChildCount() int {
	return len(e.children)
}

func (e *Expr) Child(nth int) *Expr {
	return e.children[nth]
}

// Children returns the ordered child list. It is empty for Scan, ColumnRef
// and Const.
func (e *Expr) Children() []*Expr {
	return append([]*Expr(nil), e.children...)
}

// WithChildren returns an expression with the same operator and payload as e
// whose children are replaced positionally. If every child is identical to
// the existing one, e itself is returned.
func (e *Expr) WithChildren(children []*Expr) *Expr {
	if len(children) != len(e.children) {
		panic(errors.AssertionFailedf("%s expects %d children, found %d", e.op, len(e.children), len(children)))
	}
	same := true
	for i := range children {
		if children[i] != e.children[i] {
			same = false
			break
		}
	}
	if same {
		return e
	}
	return mustExpr(e.op, e.private, children...)
}

// Equals returns true if the two trees are structurally equal.
func (e *Expr) Equals(other *Expr) bool {
	if e == other {
		return true
	}
	if e == nil || other == nil {
		return false
	}
	if e.op != other.op || e.private != other.private || len(e.children) != len(other.children) {
		return false
	}
	for i := range e.children {
		if !e.children[i].Equals(other.children[i]) {
			return false
		}
	}
	return true
}

// NodeCount returns the number of nodes in the tree, counting shared
// sub-trees once per occurrence.
func (e *Expr) NodeCount() int {
	n := 1
	for _, c := range e.children {
		n += c.NodeCount()
	}
	return n
}

// Format returns the single-line S-expression form of the tree, which
// ParseExpr accepts.
func (e *Expr) Format() string {
	var buf bytes.Buffer
	e.format(&buf)
	return buf.String()
}

func (e *Expr) format(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "(%s", e.op)
	if p := FormatPayload(e.op, e.private); p != "" {
		buf.WriteByte(' ')
		buf.WriteString(p)
	}
	for _, c := range e.children {
		buf.WriteByte(' ')
		c.format(buf)
	}
	buf.WriteByte(')')
}

// String pretty-prints the tree, one node per line.
func (e *Expr) String() string {
	tp := treeprinter.New()
	e.formatTree(tp)
	return tp.String()
}

func (e *Expr) formatTree(tp treeprinter.Node) {
	text := e.op.String()
	if p := FormatPayload(e.op, e.private); p != "" {
		text += " " + p
	}
	n := tp.Child(text)
	for _, c := range e.children {
		c.formatTree(n)
	}
}
