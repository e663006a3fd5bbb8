package memo

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/cat"
	"github.com/petermattis/memotoy/opt"
)

// GroupID identifies a memo group. Groups have numbers greater than 0; a
// GroupID of 0 indicates an unknown group. IDs are never reused: after a
// merge an ID keeps resolving, through Memo.Find, to the surviving group.
type GroupID uint32

// SafeValue implements the redact.SafeValue interface.
func (GroupID) SafeValue() {}

func (g GroupID) String() string {
	return fmt.Sprintf("G%d", uint32(g))
}

// Expr is a memo expression: an operator whose children are groups rather
// than sub-trees. Two memo expressions are equal iff they have the same
// operator, payload and child groups, so Expr is used directly as the key of
// the memo's hash-consing table. Unused child slots are zero.
type Expr struct {
	op       opt.Operator
	private  int64
	children [opt.MaxChildren]GroupID
}

// MakeExpr constructs a memo expression. The number of children must match
// the arity of the operator.
func MakeExpr(op opt.Operator, private int64, children ...GroupID) Expr {
	if !op.Valid() {
		panic(errors.AssertionFailedf("unknown operator: %d", errors.Safe(uint8(op))))
	}
	if len(children) != op.Arity() {
		panic(errors.AssertionFailedf("%s expects %d children, found %d", op, op.Arity(), len(children)))
	}
	if err := opt.CheckPayload(op, private); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "invalid %s expression", op))
	}
	e := Expr{op: op, private: private}
	for i, c := range children {
		if c == 0 {
			panic(errors.AssertionFailedf("%s child %d is missing", op, i))
		}
		e.children[i] = c
	}
	return e
}

func (e Expr) Op() opt.Operator {
	return e.op
}

// Private returns the raw payload. Prefer Table, Column or Value.
func (e Expr) Private() int64 {
	return e.private
}

func (e Expr) Table() cat.TableID {
	return opt.TableOf(e.op, e.private)
}

func (e Expr) Column() int {
	return opt.ColumnOf(e.op, e.private)
}

func (e Expr) Value() int64 {
	return opt.ValueOf(e.op, e.private)
}

func (e Expr) JoinFlags() opt.JoinFlags {
	return opt.JoinFlagsOf(e.op, e.private)
}

func (e Expr) ChildCount() int {
	return e.op.Arity()
}

func (e Expr) Child(nth int) GroupID {
	if nth >= e.op.Arity() {
		panic(errors.AssertionFailedf("%s has no child %d", e.op, nth))
	}
	return e.children[nth]
}

// Children returns the child groups in order.
func (e Expr) Children() []GroupID {
	return append([]GroupID(nil), e.children[:e.op.Arity()]...)
}

// String formats the expression as "(Join G1 G2 G3)", "(Join commuted G2 G1
// G4)" or "(Scan 0)".
func (e Expr) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "(%s", e.op)
	if p := opt.FormatPayload(e.op, e.private); p != "" {
		buf.WriteByte(' ')
		buf.WriteString(p)
	}
	for i := 0; i < e.ChildCount(); i++ {
		fmt.Fprintf(&buf, " %s", e.children[i])
	}
	buf.WriteByte(')')
	return buf.String()
}
