package portgraph

import (
	"fmt"
	"strings"
)

// upstreamSiblings returns the distinct siblings feeding n through data
// connections, in input order.
func upstreamSiblings(n *Node) []*Node {
	var ups []*Node
	seen := make(map[*Node]bool)
	for _, in := range n.Inputs().All() {
		src := in.Source()
		if src == nil {
			continue
		}
		up := src.Owner()
		if up == nil || up.parent != n.parent || seen[up] {
			continue
		}
		seen[up] = true
		ups = append(ups, up)
	}
	return ups
}

// topoSort orders nodes so every node follows its data dependencies. Ties
// keep the input order. A cycle, including a node feeding itself, fails
// with ErrCycle naming the nodes left unordered.
func topoSort(nodes []*Node) ([]*Node, error) {
	index := make(map[*Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	inDegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, up := range upstreamSiblings(n) {
			j, ok := index[up]
			if !ok {
				continue
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var queue []int
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]*Node, 0, len(nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, nodes[i])
		for _, j := range dependents[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(order) != len(nodes) {
		var stuck []string
		for i, d := range inDegree {
			if d > 0 {
				stuck = append(stuck, nodes[i].Label())
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}
