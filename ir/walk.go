package ir

// Walk traverses the IR tree rooted at n in depth-first order.
// It calls f(n) for each node; if f returns true, Walk visits the
// children of n, including the bodies of nested lambdas.
// Nil children are skipped.
func Walk(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Block:
		walkList(n.List, f)
	case *Assign:
		Walk(n.X, f)
	case *Lambda:
		Walk(n.Body, f)
	case *If:
		Walk(n.Cond, f)
		Walk(n.Then, f)
		Walk(n.Else, f)
	case *Not:
		Walk(n.X, f)
	case *ToBool:
		Walk(n.X, f)
	case *AndAlso:
		Walk(n.X, f)
		Walk(n.Y, f)
	case *OrElse:
		Walk(n.X, f)
		Walk(n.Y, f)
	case *Loop:
		Walk(n.Body, f)
	case *Label:
		Walk(n.Default, f)
	case *Goto:
		Walk(n.Value, f)
	case *Switch:
		Walk(n.X, f)
		for _, c := range n.Cases {
			Walk(c, f)
		}
		Walk(n.Default, f)
	case *Case:
		walkList(n.Values, f)
		Walk(n.Body, f)
	case *TryFinally:
		Walk(n.Body, f)
		Walk(n.Finally, f)
	case *ContextCall:
		Walk(n.Ctx, f)
		walkList(n.Args, f)
	case *Dynamic:
		walkList(n.Args, f)
	case *Iterate:
		Walk(n.X, f)
	case *MoveNext:
		Walk(n.Enum, f)
	case *Current:
		Walk(n.Enum, f)
	case *Where:
		Walk(n.X, f)
		Walk(n.Pred, f)
	case *List:
		walkList(n.Elems, f)
	case *Debug:
		Walk(n.X, f)
	}
}

func walkList(list []Node, f func(Node) bool) {
	for _, n := range list {
		Walk(n, f)
	}
}

// Sites returns the call sites of the Dynamic nodes and switch
// statements within fn, in traversal order.
func Sites(fn *Lambda) []*CallSite {
	var sites []*CallSite
	Walk(fn, func(n Node) bool {
		switch n := n.(type) {
		case *Dynamic:
			sites = append(sites, n.Site)
		case *Switch:
			if n.Equal != nil {
				sites = append(sites, n.Equal)
			}
		}
		return true
	})
	return sites
}
