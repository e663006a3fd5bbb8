package opt

// RewriteFunc rewrites a single node. It returns nil if it does not apply.
type RewriteFunc func(e *Expr) *Expr

// ApplyBottomUp rebuilds the tree from the leaves up, first rewriting every
// child and then offering the rebuilt node to fn. Each node is visited once;
// the output of fn is not revisited.
func ApplyBottomUp(e *Expr, fn RewriteFunc) *Expr {
	var children []*Expr
	if n := e.ChildCount(); n > 0 {
		children = make([]*Expr, n)
		for i := 0; i < n; i++ {
			children[i] = ApplyBottomUp(e.Child(i), fn)
		}
		e = e.WithChildren(children)
	}
	if r := fn(e); r != nil {
		return r
	}
	return e
}
