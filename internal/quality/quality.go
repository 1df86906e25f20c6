// Package quality rule-checks the narrative summary of a candidate record
// before it is accepted as validated.
package quality

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/careaudit-cli/internal/extract"
	"github.com/sells-group/careaudit-cli/internal/model"
)

// MaxSummaryLength is the longest accepted summary, in characters.
const MaxSummaryLength = 800

// MinSentences is the fewest sentences an accepted summary may have.
const MinSentences = 2

// domainTerms are words that show the summary describes concrete findings.
var domainTerms = []string{
	"medication", "staffing", "safety", "resident", "inspection",
	"sanitation", "training", "records", "supervision", "maintenance",
	"emergency", "fire", "health", "care", "compliance", "survey",
	"moratorium", "reporting", "fine", "penalty", "deficiency",
	"violation", "admission",
}

// fillerOpenings are generic lead-ins a summary must not start with.
var fillerOpenings = []string{
	"this facility",
	"this report",
	"based on the",
	"according to the",
	"overall",
}

// Result is the outcome of a quality check. Reasons is empty when Passed.
type Result struct {
	Passed  bool
	Reasons []string
}

// Validate checks the candidate's summary.
func Validate(c *model.Candidate) Result {
	summary := strings.TrimSpace(c.SummaryText())
	if summary == "" {
		return Result{Reasons: []string{"summary is missing"}}
	}

	var reasons []string
	if n := countSentences(summary); n < MinSentences {
		reasons = append(reasons, fmt.Sprintf("fewer than %d sentences (%d)", MinSentences, n))
	}

	lower := strings.ToLower(summary)
	if !hasDomainTerm(lower) && !strings.Contains(lower, extract.LimitationPhrase) {
		reasons = append(reasons, "no concrete finding described and no statement that details are unavailable")
	}

	for _, f := range fillerOpenings {
		if strings.HasPrefix(lower, f) {
			reasons = append(reasons, fmt.Sprintf("opens with generic phrase %q", summary[:len(f)]))
			break
		}
	}

	if n := utf8.RuneCountInString(summary); n > MaxSummaryLength {
		reasons = append(reasons, fmt.Sprintf("over %d characters (%d)", MaxSummaryLength, n))
	}

	return Result{Passed: len(reasons) == 0, Reasons: reasons}
}

func hasDomainTerm(lower string) bool {
	for _, w := range domainTerms {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// countSentences counts runs of text ended by '.', '!' or '?' followed by
// whitespace or the end of the string. Trailing text without a terminator
// counts as a sentence.
func countSentences(s string) int {
	runes := []rune(s)
	count := 0
	pending := false
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			if pending && (i == len(runes)-1 || unicode.IsSpace(runes[i+1])) {
				count++
				pending = false
			}
			continue
		}
		if !unicode.IsSpace(r) {
			pending = true
		}
	}
	if pending {
		count++
	}
	return count
}
