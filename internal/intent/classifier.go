package intent

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/ChatAgent/internal/models"
)

// Match is the outcome of classifying one input.
type Match struct {
	Intent models.IntentID
	// Keyword is the keyword that triggered the match; empty when unmatched.
	Keyword string
}

// Classifier maps free text to an intent by substring keyword matching.
type Classifier struct {
	catalog *Catalog
}

// NewClassifier creates a Classifier over catalog.
func NewClassifier(catalog *Catalog) *Classifier {
	return &Classifier{catalog: catalog}
}

// Classify returns the first intent in scan order with a keyword contained in
// text, ignoring case. Text that matches nothing, including the empty string,
// yields IntentUnmatched.
func (c *Classifier) Classify(text string) models.IntentID {
	return c.Match(text).Intent
}

// Match is like Classify but also reports the keyword that won.
func (c *Classifier) Match(text string) Match {
	lower := strings.ToLower(text)
	if lower == "" {
		return Match{Intent: models.IntentUnmatched}
	}

	for _, id := range c.catalog.order {
		if kw, ok := firstKeyword(lower, c.catalog.entries[id].keywords); ok {
			slog.Debug("Classifier matched intent", "intent", id, "keyword", kw, "length", len(text))
			return Match{Intent: id, Keyword: kw}
		}
	}

	slog.Debug("Classifier found no intent", "length", len(text))
	return Match{Intent: models.IntentUnmatched}
}

func firstKeyword(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
