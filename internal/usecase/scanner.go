package usecase

import (
	"strings"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/nodetree"
)

// Candidate is a window node worth classifying.
type Candidate struct {
	Node domain.Node
	Text string
}

var (
	webFieldClassMarkers = []string{"input", "textarea", "text", "search"}
	webFieldDescMarkers  = []string{"input", "search"}
)

// FindCandidates collects text-bearing input nodes in pre-order.
// Focused editable fields always qualify. On browsers unfocused editable
// fields and web-looking fields qualify too.
func FindCandidates(root domain.Node, browser bool, limits nodetree.Limits) []Candidate {
	var result []Candidate
	nodetree.Walk(root, limits, func(n domain.Node, _ int) bool {
		text := n.Text()
		if text == "" {
			return true
		}
		switch {
		case n.IsEditable() && (n.IsFocused() || browser):
			result = append(result, Candidate{Node: n, Text: text})
		case browser && looksLikeWebField(n):
			result = append(result, Candidate{Node: n, Text: text})
		}
		return true
	})
	return result
}

func looksLikeWebField(n domain.Node) bool {
	class := strings.ToLower(n.ClassName())
	for _, m := range webFieldClassMarkers {
		if strings.Contains(class, m) {
			return true
		}
	}
	desc := strings.ToLower(n.ContentDescription())
	for _, m := range webFieldDescMarkers {
		if strings.Contains(desc, m) {
			return true
		}
	}
	return false
}
