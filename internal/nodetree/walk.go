// Package nodetree walks host UI node trees under hard budgets.
// Host trees can be deep, wide or cyclic through buggy parent links, so
// every traversal here is iterative and bounded.
package nodetree

import "github.com/eliteGoblin/focusd/inputguard/internal/domain"

// Limits bounds a traversal. Zero fields take the defaults.
type Limits struct {
	MaxDepth  int // Root is depth 0
	MaxFanout int // Children visited per node
	MaxNodes  int // Total nodes visited
}

// DefaultLimits returns the budgets used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 32, MaxFanout: 64, MaxNodes: 2000}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxFanout <= 0 {
		l.MaxFanout = d.MaxFanout
	}
	if l.MaxNodes <= 0 {
		l.MaxNodes = d.MaxNodes
	}
	return l
}

type frame struct {
	node  domain.Node
	depth int
}

// Walk visits nodes depth-first in pre-order, children left to right.
// visit returns false to stop early. Returns the number of nodes visited.
func Walk(root domain.Node, limits Limits, visit func(n domain.Node, depth int) bool) int {
	if root == nil {
		return 0
	}
	limits = limits.normalized()

	stack := []frame{{node: root}}
	visited := 0
	for len(stack) > 0 && visited < limits.MaxNodes {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visited++
		if !visit(top.node, top.depth) {
			break
		}
		if top.depth >= limits.MaxDepth {
			continue
		}

		children := top.node.Children()
		if len(children) > limits.MaxFanout {
			children = children[:limits.MaxFanout]
		}
		for i := len(children) - 1; i >= 0; i-- {
			if children[i] != nil {
				stack = append(stack, frame{node: children[i], depth: top.depth + 1})
			}
		}
	}
	return visited
}

// Ancestors returns up to max parents of n, nearest first.
func Ancestors(n domain.Node, max int) []domain.Node {
	if n == nil {
		return nil
	}
	var result []domain.Node
	for p := n.Parent(); p != nil && len(result) < max; p = p.Parent() {
		result = append(result, p)
	}
	return result
}
