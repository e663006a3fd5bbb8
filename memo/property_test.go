package memo

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/petermattis/memotoy/cat"
	"github.com/petermattis/memotoy/opt"
)

// genScan generates scans of a few tables so that generated trees share
// sub-expressions.
func genScan() gopter.Gen {
	return gen.IntRange(0, 2).Map(func(table int) *opt.Expr {
		return opt.Scan(cat.TableID(table))
	})
}

func genPredicate() gopter.Gen {
	col := gen.IntRange(0, 3).Map(func(i int) *opt.Expr {
		return opt.ColumnRef(i)
	})
	val := gen.Int64Range(0, 2).Map(func(v int64) *opt.Expr {
		return opt.Const(v)
	})
	return gopter.CombineGens(col, gen.OneGenOf(col, val)).Map(func(v []interface{}) *opt.Expr {
		return opt.Eq(v[0].(*opt.Expr), v[1].(*opt.Expr))
	})
}

// genTree generates relational trees of at most the given depth.
func genTree(depth int) gopter.Gen {
	if depth == 0 {
		return genScan()
	}
	sub := genTree(depth - 1)
	filter := gopter.CombineGens(sub, genPredicate()).Map(func(v []interface{}) *opt.Expr {
		return opt.Filter(v[0].(*opt.Expr), v[1].(*opt.Expr))
	})
	join := gopter.CombineGens(sub, sub, genPredicate(), gen.Bool()).Map(func(v []interface{}) *opt.Expr {
		left, right, cond := v[0].(*opt.Expr), v[1].(*opt.Expr), v[2].(*opt.Expr)
		if v[3].(bool) {
			return opt.CommutedJoin(left, right, cond)
		}
		return opt.Join(left, right, cond)
	})
	return gen.OneGenOf(genScan(), filter, join)
}

func TestMemoProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("extract inverts memorize", prop.ForAll(
		func(e *opt.Expr) bool {
			m := New(nil)
			return e.Equals(m.Extract(m.Memorize(e))) && m.CheckInvariants() == nil
		},
		genTree(5),
	))

	properties.Property("memorize is idempotent", prop.ForAll(
		func(e *opt.Expr) bool {
			m := New(nil)
			g := m.Memorize(e)
			n, version := m.NumGroups(), m.Version()
			return m.Memorize(e) == g && m.NumGroups() == n && m.Version() == version
		},
		genTree(5),
	))

	properties.Property("memo never has more groups than nodes", prop.ForAll(
		func(e *opt.Expr) bool {
			m := New(nil)
			m.Memorize(e)
			return m.NumGroups() <= e.NodeCount()
		},
		genTree(5),
	))

	properties.Property("merges keep the memo consistent", prop.ForAll(
		func(a, b *opt.Expr, picks []int) bool {
			m := New(nil)
			m.Memorize(a)
			m.Memorize(b)

			// Merge pairs of scans. Scans have no children, so no merge between
			// them can create a cycle, but congruence closure may collapse any
			// number of their ancestors.
			var scans []GroupID
			for _, id := range m.Groups() {
				if m.Members(id)[0].Op() == opt.ScanOp {
					scans = append(scans, id)
				}
			}
			for i := 0; i+1 < len(picks) && len(scans) > 1; i += 2 {
				x, y := scans[picks[i]%len(scans)], scans[picks[i+1]%len(scans)]
				merged := m.MergeGroups(x, y)
				if merged != m.Find(x) || merged != m.Find(y) {
					return false
				}
			}
			return m.CheckInvariants() == nil
		},
		genTree(4),
		genTree(4),
		gen.SliceOfN(4, gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}
