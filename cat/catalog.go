package cat

import "github.com/cockroachdb/errors"

// Catalog holds the tables referenced by Scan operators. The memo consults it
// for the width of a scan's output schema, which rules need in order to remap
// column references.
type Catalog struct {
	tables map[TableID]*Table
	names  map[TableName]TableID
}

func NewCatalog() *Catalog {
	return &Catalog{
		tables: make(map[TableID]*Table),
		names:  make(map[TableName]TableID),
	}
}

func (c *Catalog) AddTable(tbl *Table) error {
	if _, ok := c.tables[tbl.ID]; ok {
		return errors.Newf("table already exists: %d", tbl.ID)
	}
	if _, ok := c.names[tbl.Name]; ok {
		return errors.Newf("table already exists: %s", tbl.Name)
	}

	c.tables[tbl.ID] = tbl
	c.names[tbl.Name] = tbl.ID
	return nil
}

func (c *Catalog) Table(id TableID) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	tbl, ok := c.tables[id]
	return tbl, ok
}

func (c *Catalog) TableByName(name TableName) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	id, ok := c.names[name]
	if !ok {
		return nil, false
	}
	return c.tables[id], true
}

// TableWidth returns the number of columns of the table, or false if the
// table is unknown. A nil catalog knows no tables.
func (c *Catalog) TableWidth(id TableID) (int, bool) {
	tbl, ok := c.Table(id)
	if !ok {
		return 0, false
	}
	return tbl.ColumnCount(), true
}
