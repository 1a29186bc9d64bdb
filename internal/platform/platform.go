// Package platform maps configured platform names to posters and formats post text.
package platform

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/ports"
)

// Limits describe how hard a platform may be driven.
type Limits struct {
	RequestsPerHour int
	RetryAttempts   int
	BackoffBase     float64
}

// DefaultLimits per platform name. Unknown platforms use FallbackLimits.
var DefaultLimits = map[string]Limits{
	"facebook":  {RequestsPerHour: 200, RetryAttempts: 3, BackoffBase: 2},
	"instagram": {RequestsPerHour: 200, RetryAttempts: 3, BackoffBase: 2},
	"twitter":   {RequestsPerHour: 300, RetryAttempts: 3, BackoffBase: 2},
	"telegram":  {RequestsPerHour: 3000, RetryAttempts: 3, BackoffBase: 1.5},
}

// FallbackLimits applies to platforms without an entry in DefaultLimits.
var FallbackLimits = Limits{RequestsPerHour: 200, RetryAttempts: 3, BackoffBase: 2}

// LimitsFor returns the default limits of name.
func LimitsFor(name string) Limits {
	if l, ok := DefaultLimits[name]; ok {
		return l
	}
	return FallbackLimits
}

// Registry keeps a mapping from platform names to their posters.
type Registry struct {
	posters map[string]ports.Poster
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{posters: map[string]ports.Poster{}}
}

// Register adds or replaces a poster implementation.
func (r *Registry) Register(poster ports.Poster) {
	if r.posters == nil {
		r.posters = map[string]ports.Poster{}
	}
	r.posters[poster.Name()] = poster
}

// Resolve returns a poster by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Poster, error) {
	if poster, ok := r.posters[name]; ok {
		return poster, nil
	}
	return nil, fmt.Errorf("platform %s is not registered", name)
}

// Enabled resolves names in order. The first one is the primary platform.
func (r *Registry) Enabled(names []string) ([]ports.Poster, error) {
	out := make([]ports.Poster, 0, len(names))
	for _, name := range names {
		poster, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, poster)
	}
	return out, nil
}

var categoryEmoji = map[domain.Category]string{
	"WELFARE":              "🏛️",
	"ALERTS":               "🚨",
	"WAR_GEO":              "🌍",
	"POLITICS":             "🗳️",
	"FINANCE":              "💰",
	"TECH_SCI":             "🔬",
	domain.CategoryGeneral: "📰",
	domain.CategoryNoise:   "🗑️",
}

// Emoji returns the category marker used in posts and approval captions.
func Emoji(cat domain.Category) string {
	if e, ok := categoryEmoji[cat]; ok {
		return e
	}
	return "📰"
}

// Compose builds the public post for an approved article.
func Compose(a domain.Article, display string) domain.PostContent {
	var b strings.Builder
	b.WriteString(Emoji(a.Category) + " " + a.Title)
	if a.Summary != "" {
		b.WriteString("\n\n" + Truncate(a.Summary, 150) + "...")
	}
	if display != "" {
		b.WriteString("\n\n📌 " + display)
	}
	return domain.PostContent{ArticleID: a.ID, Title: a.Title, Text: b.String(), Link: a.URL}
}

// Caption builds the reviewer message for an article awaiting approval.
func Caption(a domain.Article, display string) string {
	summary := Truncate(a.Summary, 200)
	if utf8.RuneCountInString(a.Summary) > 200 {
		summary += "..."
	}
	return fmt.Sprintf("📌 %s | %s %s\n\n%s\n\n%s\n\nScore: %.1f",
		display, Emoji(a.Category), a.Category, a.Title, summary, a.Score)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
