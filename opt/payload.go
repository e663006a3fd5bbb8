package opt

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/memotoy/cat"
)

// The payload of every universe (concrete expressions, memo expressions and
// bindings) is stored as a single int64 whose meaning depends on the
// operator. These accessors are the only way to read it; reading the payload
// through the wrong accessor means the caller has lost track of what it is
// holding, which is an internal error.

// JoinFlags is the payload of a Join.
type JoinFlags int64

const (
	// JoinCommuted marks a join whose inputs are listed in the opposite order
	// of its output columns. The condition refers to the first input's columns
	// followed by the second input's, as for any join, but the output lists
	// the second input's columns first. Swapping the inputs of a join and
	// toggling the flag therefore leaves its output unchanged.
	JoinCommuted JoinFlags = 1 << iota

	allJoinFlags = JoinCommuted
)

const joinCommutedName = "commuted"

// Commuted returns true if the JoinCommuted flag is set.
func (f JoinFlags) Commuted() bool {
	return f&JoinCommuted != 0
}

func (f JoinFlags) String() string {
	if f.Commuted() {
		return joinCommutedName
	}
	return ""
}

// TableOf returns the table scanned by a Scan operator.
func TableOf(op Operator, private int64) cat.TableID {
	assertPayload(op, tablePayload)
	return cat.TableID(private)
}

// ColumnOf returns the column index of a ColumnRef operator.
func ColumnOf(op Operator, private int64) int {
	assertPayload(op, columnPayload)
	return int(private)
}

// ValueOf returns the value of a Const operator.
func ValueOf(op Operator, private int64) int64 {
	assertPayload(op, valuePayload)
	return private
}

// JoinFlagsOf returns the flags of a Join operator.
func JoinFlagsOf(op Operator, private int64) JoinFlags {
	assertPayload(op, joinFlagsPayload)
	return JoinFlags(private)
}

func assertPayload(op Operator, want payloadKind) {
	if !op.Valid() || opInfo[op].payload != want {
		panic(errors.AssertionFailedf("payload of %s accessed as %s", op, payloadNames[want]))
	}
}

var payloadNames = [...]string{
	noPayload:        "none",
	tablePayload:     "table",
	columnPayload:    "column",
	valuePayload:     "value",
	joinFlagsPayload: "join flags",
}

// CheckPayload returns an error if private is not a valid payload for the
// operator.
func CheckPayload(op Operator, private int64) error {
	switch opInfo[op].payload {
	case noPayload:
		if private != 0 {
			return errors.Newf("%s does not take a payload", op)
		}
	case joinFlagsPayload:
		if JoinFlags(private)&^allJoinFlags != 0 {
			return errors.Newf("invalid %s flags: %d", op, private)
		}
	}
	return nil
}

// FormatPayload returns the textual form of the payload, or "" if the
// operator has none. Join flags are omitted when none is set.
func FormatPayload(op Operator, private int64) string {
	switch opInfo[op].payload {
	case noPayload:
		return ""
	case joinFlagsPayload:
		return JoinFlags(private).String()
	default:
		return strconv.FormatInt(private, 10)
	}
}

// ParsePayload is the inverse of FormatPayload for a non-empty payload.
func ParsePayload(op Operator, lit string) (int64, error) {
	switch opInfo[op].payload {
	case noPayload:
		return 0, errors.Newf("%s does not take a payload", op)
	case joinFlagsPayload:
		if lit != joinCommutedName {
			return 0, errors.Newf("invalid %s flags %q", op, lit)
		}
		return int64(JoinCommuted), nil
	default:
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid %s payload", op)
		}
		return v, nil
	}
}

// payloadOptional returns true if the payload may be left out of the textual
// form, in which case it is zero.
func payloadOptional(op Operator) bool {
	return opInfo[op].payload == joinFlagsPayload
}
