package cat

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// TableID identifies a table in the catalog. It is the payload of a Scan
// operator.
type TableID int64

// SafeValue implements the redact.SafeValue interface.
func (TableID) SafeValue() {}

var _ redact.SafeValue = TableID(0)

type TableName string
type ColumnName string
type ColumnOrdinal int

type Column struct {
	Name ColumnName
}

type Table struct {
	ID      TableID
	Name    TableName
	Columns []Column

	// colMap indexes all columns by mapping their name to their ordinal
	// position in the table.
	colMap map[ColumnName]ColumnOrdinal
}

// NewTable returns a table with the given columns.
func NewTable(id TableID, name TableName, cols ...ColumnName) (*Table, error) {
	t := &Table{ID: id, Name: name}
	for _, c := range cols {
		if _, err := t.AddColumn(Column{Name: c}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) AddColumn(col Column) (ColumnOrdinal, error) {
	if t.colMap == nil {
		t.colMap = make(map[ColumnName]ColumnOrdinal)
	}

	if _, ok := t.colMap[col.Name]; ok {
		return 0, errors.Newf("table %q already has column %q", t.Name, col.Name)
	}

	ord := ColumnOrdinal(len(t.Columns))
	t.Columns = append(t.Columns, col)
	t.colMap[col.Name] = ord
	return ord, nil
}

// ColumnCount is the width of the table's output schema.
func (t *Table) ColumnCount() int {
	return len(t.Columns)
}

func (t *Table) ColumnOrdinal(name ColumnName) (ColumnOrdinal, bool) {
	ord, ok := t.colMap[name]
	return ord, ok
}

func (t *Table) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "table %s [%d]\n", t.Name, t.ID)
	for i, col := range t.Columns {
		fmt.Fprintf(&buf, "  %d: %s\n", i, col.Name)
	}
	return buf.String()
}
