// Package category maps free-text search keywords to canonical vendor
// category identifiers.
package category

import "strings"

// Rule assigns Category to any keyword containing one of Patterns.
type Rule struct {
	Category string
	Patterns []string
}

// DefaultRules is the ordered rule set. Order matters: "photo booth" is a
// photographer keyword because photographers is tested first.
var DefaultRules = []Rule{
	{Category: "photographers", Patterns: []string{"photographer", "photography", "photo"}},
	{Category: "wedding-planners", Patterns: []string{"wedding planner", "planner"}},
	{Category: "videographers", Patterns: []string{"videographer", "videography", "video"}},
	{Category: "florists", Patterns: []string{"florist", "floral"}},
	{Category: "caterers", Patterns: []string{"caterer", "catering"}},
	{Category: "venues", Patterns: []string{"venue"}},
	{Category: "djs-and-bands", Patterns: []string{"dj", "band", "music"}},
	{Category: "cake-designers", Patterns: []string{"cake"}},
	{Category: "bridal-shops", Patterns: []string{"bridal"}},
	{Category: "makeup-artists", Patterns: []string{"makeup"}},
	{Category: "hair-stylists", Patterns: []string{"hair"}},
}

// DefaultStripPrefix is removed from keywords before matching.
const DefaultStripPrefix = "wedding "

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	prefix string
	rules  []Rule
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithStripPrefix sets the leading token removed before matching. An empty
// prefix disables stripping.
func WithStripPrefix(prefix string) Option {
	return func(c *Classifier) { c.prefix = strings.ToLower(prefix) }
}

// WithRules replaces the default rule set.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) { c.rules = rules }
}

// New returns a Classifier using DefaultRules and DefaultStripPrefix unless
// overridden.
func New(opts ...Option) *Classifier {
	c := &Classifier{prefix: DefaultStripPrefix, rules: DefaultRules}
	for _, opt := range opts {
		opt(c)
	}

	// Lower-case patterns once so Classify only lowers the input.
	rules := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		patterns := make([]string, len(r.Patterns))
		for j, p := range r.Patterns {
			patterns[j] = strings.ToLower(p)
		}
		rules[i] = Rule{Category: r.Category, Patterns: patterns}
	}
	c.rules = rules
	return c
}

// Classify returns the category of keyword, or false when no rule matches.
// Callers fall back to a free-text search in that case.
func (c *Classifier) Classify(keyword string) (string, bool) {
	text := strings.TrimLeft(strings.ToLower(keyword), " \t")
	if c.prefix != "" {
		text = strings.TrimPrefix(text, c.prefix)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	for _, r := range c.rules {
		for _, p := range r.Patterns {
			if strings.Contains(text, p) {
				return r.Category, true
			}
		}
	}
	return "", false
}

// Categories lists the category identifiers in rule order.
func (c *Classifier) Categories() []string {
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Category
	}
	return out
}
