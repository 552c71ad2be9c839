package directive

// Result is a transform's replacement for the visited node. Nodes replace
// it in the parent list (empty removes it). With Skip the walker continues
// after the inserted nodes; without it the inserted nodes are visited next.
type Result struct {
	Nodes []*Node
	Skip  bool
}

// Keep leaves a node in place untouched.
func Keep(n *Node) Result {
	return Result{Nodes: []*Node{n}, Skip: true}
}

// Replace substitutes already-resolved nodes.
func Replace(nodes ...*Node) Result {
	return Result{Nodes: nodes, Skip: true}
}

// Remove drops the node.
func Remove() Result {
	return Result{}
}

// Transform handles one node. Returning false means the node is not
// handled: it stays and its children are walked.
type Transform func(n *Node) (Result, bool)

// Walk applies t to nodes in document order and returns the new list. The
// walker owns the splicing, so transforms never see the parent list.
func Walk(nodes []*Node, t Transform) []*Node {
	out := make([]*Node, 0, len(nodes))
	queue := append([]*Node(nil), nodes...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == nil {
			continue
		}

		res, handled := t(n)
		if !handled {
			if len(n.Children) > 0 {
				n.Children = Walk(n.Children, t)
			}
			out = append(out, n)
			continue
		}

		// A node returned as itself would be revisited forever.
		if res.Skip || (len(res.Nodes) == 1 && res.Nodes[0] == n) {
			out = append(out, res.Nodes...)
			continue
		}
		queue = append(append([]*Node(nil), res.Nodes...), queue...)
	}
	return out
}
