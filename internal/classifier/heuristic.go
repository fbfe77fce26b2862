// Package classifier provides a local, rule-based verdict source.
//
// Architecture:
//
//	domain.Classifier (interface)
//	  └── Heuristic   ships built-in, regex rules, runs synchronously
//
// A remote model can be plugged in anywhere a domain.Classifier is accepted.
package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// rule is a single detection pattern.
type rule struct {
	id          string
	category    domain.Category
	confidence  float64
	reason      string
	suggestions []string
	patterns    []*regexp.Regexp
}

// Heuristic detects policy violations with pattern matching.
// The highest-confidence matching rule decides the verdict.
type Heuristic struct {
	rules []rule
}

// NewHeuristic creates a classifier with the built-in rules.
func NewHeuristic() *Heuristic {
	return &Heuristic{rules: builtinRules()}
}

func (h *Heuristic) Name() string { return "heuristic" }

// Classify never fails except on a canceled context.
func (h *Heuristic) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, err
	}

	normalized := strings.ToLower(strings.TrimSpace(text))
	var best *rule
	for i := range h.rules {
		r := &h.rules[i]
		if !matchesAny(normalized, r.patterns) {
			continue
		}
		if best == nil || r.confidence > best.confidence {
			best = r
		}
	}

	if best == nil {
		return domain.Verdict{
			Category:   domain.CategoryNone,
			Confidence: 0.9,
			Reason:     "No policy signals found",
		}, nil
	}

	suggestions := make([]string, len(best.suggestions))
	copy(suggestions, best.suggestions)
	return domain.Verdict{
		IsViolation: true,
		Category:    best.category,
		Confidence:  best.confidence,
		Reason:      best.reason,
		Suggestions: suggestions,
	}, nil
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func builtinRules() []rule {
	return []rule{
		// --- Privacy: credentials typed in the clear ---
		{
			id:         "credential_disclosure",
			category:   domain.CategoryPrivacyViolation,
			confidence: 0.9,
			reason:     "Text appears to disclose a password or secret",
			suggestions: []string{
				"Never share passwords in messages or prompts",
				"Use a password manager to share credentials safely",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(password|passwd|pwd|passcode|pin)\s*(is|:|=)\s*\S+`),
				regexp.MustCompile(`\b(api[_ -]?key|secret[_ -]?key|access[_ -]?token)\s*(is|:|=)\s*\S+`),
			},
		},

		// --- Privacy: government and card numbers ---
		{
			id:         "identity_number",
			category:   domain.CategoryPrivacyViolation,
			confidence: 0.85,
			reason:     "Text contains what looks like an identity or card number",
			suggestions: []string{
				"Remove personal identification numbers before sending",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
				regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
				regexp.MustCompile(`\b(ssn|social security|aadhaar|passport)\s*(number|no\.?)?\s*(is|:)\s*\S+`),
			},
		},

		// --- Privacy: requests to find someone's personal data ---
		{
			id:         "doxxing_request",
			category:   domain.CategoryPrivacyViolation,
			confidence: 0.8,
			reason:     "Text asks for someone's private information",
			suggestions: []string{
				"Respect other people's privacy",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(find|get|show|leak)\b.*\b(home address|phone number|private photos)\b`),
			},
		},

		// --- Harmful: weapons and violence ---
		{
			id:         "violent_harm",
			category:   domain.CategoryHarmfulContent,
			confidence: 0.9,
			reason:     "Text describes causing serious harm",
			suggestions: []string{
				"If you or someone else is in danger, contact local emergency services",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bhow (to|do i|can i) (make|build) (a )?(bomb|explosive|weapon)`),
				regexp.MustCompile(`\b(kill|hurt|poison|attack) (him|her|them|someone|my \w+)\b`),
			},
		},

		// --- Harmful: intrusion ---
		{
			id:         "intrusion",
			category:   domain.CategoryHarmfulContent,
			confidence: 0.8,
			reason:     "Text asks for help breaking into accounts or systems",
			suggestions: []string{
				"Only test systems you are authorized to access",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(hack|break into|crack)\b.*\b(account|password|wifi|phone|email)\b`),
			},
		},

		// --- Deepfake ---
		{
			id:         "synthetic_media",
			category:   domain.CategoryDeepfake,
			confidence: 0.85,
			reason:     "Text requests manipulated images or video of a real person",
			suggestions: []string{
				"Do not create media that depicts real people without consent",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bdeep ?fake\b`),
				regexp.MustCompile(`\b(face ?swap|swap (his|her|their) face)\b`),
				regexp.MustCompile(`\b(undress|nude|naked) (photo|image|picture|video) of\b`),
			},
		},

		// --- Impersonation ---
		{
			id:         "impersonation",
			category:   domain.CategoryCelebrityImpersonation,
			confidence: 0.8,
			reason:     "Text tries to impersonate a public figure",
			suggestions: []string{
				"Make it clear when content is parody or fan-made",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(pretend|pose|act) (to be|as) (a )?(celebrity|famous|president|ceo)\b`),
				regexp.MustCompile(`\bwrite (a )?(tweet|post|message) as (if you were )?[a-z]+ [a-z]+ (announcing|saying)\b`),
			},
		},

		// --- Copyright ---
		{
			id:         "piracy",
			category:   domain.CategoryCopyrightViolation,
			confidence: 0.8,
			reason:     "Text asks for pirated or cracked content",
			suggestions: []string{
				"Use licensed sources for media and software",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(pirated|cracked|torrent|warez)\b`),
				regexp.MustCompile(`\bfree download\b.*\b(movie|album|game|software)\b`),
			},
		},
	}
}

var _ domain.Classifier = (*Heuristic)(nil)
