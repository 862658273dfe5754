// Package crisis classifies free text into crisis severity tiers.
package crisis

import (
	"strings"

	"github.com/noah-isme/mindcare-api/internal/models"
)

type tier struct {
	severity models.Severity
	terms    []string
}

// Tiers are checked from most to least severe; the first tier with a match wins.
var tiers = []tier{
	{
		severity: models.SeverityCritical,
		terms:    []string{"suicide", "kill myself", "end my life", "want to die", "no reason to live", "better off dead"},
	},
	{
		severity: models.SeverityHigh,
		terms:    []string{"self harm", "cutting", "hurt myself", "suicidal", "hopeless", "worthless", "can't take it"},
	},
	{
		severity: models.SeverityMedium,
		terms:    []string{"depressed", "depression", "anxiety", "panic attack", "stressed out", "overwhelming", "breakdown"},
	},
	{
		severity: models.SeverityLow,
		terms:    []string{"worried", "anxious", "pressure", "stressed", "sad", "upset", "struggling", "difficult"},
	},
}

// Assessment is the detector verdict. Severity is empty when nothing matched.
type Assessment struct {
	Severity     models.Severity `json:"severity,omitempty"`
	MatchedTerms []string        `json:"matched_terms"`
}

// Detected reports whether any tier matched.
func (a Assessment) Detected() bool {
	return a.Severity != ""
}

var apostrophes = strings.NewReplacer("\u2019", "'", "\u2018", "'", "\u02bc", "'")

// Evaluate scans text with case-insensitive substring matching. It never fails.
func Evaluate(text string) Assessment {
	lowered := apostrophes.Replace(strings.ToLower(text))
	if strings.TrimSpace(lowered) == "" {
		return Assessment{MatchedTerms: []string{}}
	}

	for _, t := range tiers {
		matched := make([]string, 0)
		for _, term := range t.terms {
			if strings.Contains(lowered, term) {
				matched = append(matched, term)
			}
		}
		if len(matched) > 0 {
			return Assessment{Severity: t.severity, MatchedTerms: matched}
		}
	}

	return Assessment{MatchedTerms: []string{}}
}

// Terms returns a copy of the keyword list for a severity.
func Terms(severity models.Severity) []string {
	for _, t := range tiers {
		if t.severity == severity {
			return append([]string(nil), t.terms...)
		}
	}
	return nil
}
