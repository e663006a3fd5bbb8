package xform_test

import (
	"context"
	"fmt"

	"github.com/petermattis/memotoy/cat"
	"github.com/petermattis/memotoy/memo"
	"github.com/petermattis/memotoy/opt"
	"github.com/petermattis/memotoy/xform"
)

func ExampleExplorer() {
	catalog := cat.NewCatalog()
	for i, cols := range [][]cat.ColumnName{{"x", "y"}, {"x", "y", "z"}} {
		tbl, err := cat.NewTable(cat.TableID(i), cat.TableName(string(rune('a'+i))), cols...)
		if err != nil {
			panic(err)
		}
		if err := catalog.AddTable(tbl); err != nil {
			panic(err)
		}
	}

	// a JOIN b ON a.y = b.y
	e, err := opt.ParseExpr("(Join (Scan 0) (Scan 1) (Eq (Col 1) (Col 3)))")
	if err != nil {
		panic(err)
	}
	m := memo.New(catalog)
	root := m.Memorize(e)

	explorer, err := xform.NewExplorer(m, xform.DefaultConfig())
	if err != nil {
		panic(err)
	}
	res, err := explorer.Explore(context.Background())
	if err != nil {
		panic(err)
	}
	fmt.Println(res)
	fmt.Print(m)
	for _, member := range m.Members(root) {
		fmt.Println(member)
	}

	// Output:
	// fixpoint after 2 sweeps: 2 applications, 1 added, 0 rejected, 8 groups
	// memo (8 groups)
	//  |- G1: (Scan 0)
	//  |- G2: (Scan 1)
	//  |- G3: (Col 1)
	//  |- G4: (Col 3)
	//  |- G5: (Eq G3 G4)
	//  |- G6: (Join G1 G2 G5) (Join commuted G2 G1 G8)
	//  |- G7: (Col 4)
	//  |- G8: (Eq G7 G3)
	// (Join G1 G2 G5)
	// (Join commuted G2 G1 G8)
}
