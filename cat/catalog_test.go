package cat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	c := NewCatalog()

	a, err := NewTable(0, "a", "x", "y")
	require.NoError(t, err)
	require.NoError(t, c.AddTable(a))

	b, err := NewTable(1, "b", "x", "y", "z")
	require.NoError(t, err)
	require.NoError(t, c.AddTable(b))

	w, ok := c.TableWidth(1)
	require.True(t, ok)
	require.Equal(t, 3, w)

	_, ok = c.TableWidth(7)
	require.False(t, ok)

	tbl, ok := c.TableByName("a")
	require.True(t, ok)
	require.Equal(t, TableID(0), tbl.ID)

	ord, ok := b.ColumnOrdinal("z")
	require.True(t, ok)
	require.Equal(t, ColumnOrdinal(2), ord)

	dup, err := NewTable(0, "c", "x")
	require.NoError(t, err)
	require.Error(t, c.AddTable(dup))

	_, err = NewTable(2, "d", "x", "x")
	require.Error(t, err)

	require.Equal(t, "table a [0]\n  0: x\n  1: y\n", a.String())
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	_, ok := c.TableWidth(0)
	require.False(t, ok)
}
