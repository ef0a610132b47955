package filter

// Walk traverses the tree depth-first in pre-order. If fn returns false
// the children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *And:
		for _, child := range v.Children {
			Walk(child, fn)
		}
	case *Or:
		for _, child := range v.Children {
			Walk(child, fn)
		}
	case *Not:
		Walk(v.Child, fn)
	}
}

// Attributes returns the distinct attribute names referenced by the tree
// in first-seen order.
func Attributes(n Node) []string {
	var names []string
	seen := make(map[string]struct{})
	Walk(n, func(node Node) bool {
		name := AttributeName(node)
		if name == "" {
			return true
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return true
	})
	return names
}

// Leaves counts the leaf predicates in the tree.
func Leaves(n Node) int {
	count := 0
	Walk(n, func(node Node) bool {
		switch node.(type) {
		case *And, *Or, *Not:
		default:
			count++
		}
		return true
	})
	return count
}
