package opt

import (
	"fmt"

	"github.com/cockroachdb/redact"
)

// Operator identifies the kind of an expression node. The set is closed:
// adding an operator means adding a row to opInfo, which every dispatch site
// (arity, kind, payload, formatting, parsing) goes through.
type Operator uint8

const (
	UnknownOp Operator = iota

	// Relational operators.
	ScanOp
	JoinOp
	FilterOp

	// Scalar operators.
	EqOp
	ColumnRefOp
	ConstOp

	numOperators
)

// MaxChildren is the largest arity of any operator (Join).
const MaxChildren = 3

type payloadKind uint8

const (
	noPayload payloadKind = iota
	tablePayload
	columnPayload
	valuePayload
	joinFlagsPayload
)

type operatorInfo struct {
	name     string
	arity    int
	scalar   bool
	payload  payloadKind
	children [MaxChildren]childKind
}

type childKind uint8

const (
	noChild childKind = iota
	relationalChild
	scalarChild
)

var opInfo = [numOperators]operatorInfo{
	UnknownOp:   {name: "Unknown"},
	ScanOp:      {name: "Scan", payload: tablePayload},
	JoinOp:      {name: "Join", arity: 3, payload: joinFlagsPayload, children: [3]childKind{relationalChild, relationalChild, scalarChild}},
	FilterOp:    {name: "Filter", arity: 2, children: [3]childKind{relationalChild, scalarChild}},
	EqOp:        {name: "Eq", arity: 2, scalar: true, children: [3]childKind{scalarChild, scalarChild}},
	ColumnRefOp: {name: "Col", scalar: true, payload: columnPayload},
	ConstOp:     {name: "Const", scalar: true, payload: valuePayload},
}

func (op Operator) String() string {
	if op == UnknownOp || op >= numOperators {
		return fmt.Sprintf("Operator(%d)", op)
	}
	return opInfo[op].name
}

// SafeFormat implements the redact.SafeFormatter interface.
func (op Operator) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(op.String()))
}

// Valid returns true if op is one of the defined operators.
func (op Operator) Valid() bool {
	return op > UnknownOp && op < numOperators
}

// Arity is the fixed number of children of the operator.
func (op Operator) Arity() int {
	return opInfo[op].arity
}

// IsScalar returns true for predicate operators and false for relational
// ones.
func (op Operator) IsScalar() bool {
	return opInfo[op].scalar
}

// HasPayload returns true if the operator carries a scalar payload (table,
// column index, constant value or join flags).
func (op Operator) HasPayload() bool {
	return opInfo[op].payload != noPayload
}

// ChildIsScalar returns true if the nth child of the operator must be a
// scalar expression.
func (op Operator) ChildIsScalar(nth int) bool {
	return opInfo[op].children[nth] == scalarChild
}

// LookupOperator maps an operator name, as printed by String, back to the
// operator.
func LookupOperator(name string) (Operator, bool) {
	for op := ScanOp; op < numOperators; op++ {
		if opInfo[op].name == name {
			return op, true
		}
	}
	return UnknownOp, false
}
