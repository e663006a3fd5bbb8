package memo

import (
	"bytes"
	"fmt"

	"github.com/petermattis/memotoy/util/treeprinter"
)

// String dumps the canonical groups and their members:
//
//   memo (3 groups)
//    |- G1: (Scan 0)
//    |- G2: (Scan 1)
//    |- G3: (Join G1 G2 G4) (Join G2 G1 G5)
//
// The format is meant for debugging and tests; it is not stable.
func (m *Memo) String() string {
	tp := treeprinter.New()
	root := tp.Childf("memo (%d groups)", m.live)
	for _, id := range m.Groups() {
		root.Child(m.formatGroup(id))
	}
	return tp.String()
}

// FormatGroup returns a single line describing the group: its ID, logical
// properties and members.
func (m *Memo) FormatGroup(id GroupID) string {
	id = m.Find(id)
	return fmt.Sprintf("%s [%s]: %s", id, m.groups[id].props, m.formatMembers(id))
}

func (m *Memo) formatGroup(id GroupID) string {
	return fmt.Sprintf("%s: %s", id, m.formatMembers(id))
}

func (m *Memo) formatMembers(id GroupID) string {
	var buf bytes.Buffer
	for i, e := range m.groups[id].exprs {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(e.String())
	}
	return buf.String()
}
