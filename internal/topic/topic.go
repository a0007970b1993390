// Package topic decides which articles belong in the digest and in
// what order.
package topic

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mhultman/oncodigest/internal/article"
)

// Filter applies the topic profile: an ordered sequence of keyword
// groups plus an exclusion list. An article must match at least one
// keyword in EVERY group (AND across groups, OR within a group) to be
// included. This conjunctive rule is what keeps unrelated high-volume
// topics out while still requiring oncology relevance.
type Filter struct {
	groups  [][]string
	exclude []string
}

// New creates a Filter over the given query groups and exclude list.
func New(groups [][]string, exclude []string) *Filter {
	return &Filter{groups: groups, exclude: exclude}
}

// Apply filters the articles by the topic profile and returns the
// survivors ranked: venue tier descending, then published time
// descending, ties broken by ID. The result is a strict total order.
func (f *Filter) Apply(articles []article.Article) []article.Article {
	var out []article.Article
	for _, a := range articles {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	Rank(out)
	return out
}

// Matches reports whether the article passes every keyword group and
// none of the exclusions. Matching is case-insensitive over
// title+abstract.
func (f *Filter) Matches(a article.Article) bool {
	text := strings.ToLower(a.Title + " " + a.Abstract)

	if containsAny(text, f.exclude) {
		return false
	}
	for _, group := range f.groups {
		if !containsAny(text, group) {
			return false
		}
	}
	return true
}

// containsAny reports whether text contains any of the keywords.
// Phrases match as substrings; short tokens (<= 3 runes) match on word
// boundaries only, so "car" does not fire inside "carcinoma".
func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if strings.Contains(k, " ") {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}
		if len([]rune(k)) <= 3 {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
			if re.MatchString(text) {
				return true
			}
			continue
		}
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// topVenues maps journal names to their rank tier. Anything from the
// literature database with an unlisted venue still outranks preprints.
var topVenues = map[string]int{
	"nature":               3,
	"science":              3,
	"cell":                 3,
	"nature medicine":      2,
	"nature cancer":        2,
	"nature biotechnology": 2,
	"nature genetics":      2,
	"nature immunology":    2,
	"nature methods":       2,
	"cancer cell":          2,
	"cancer discovery":     2,
	"cell stem cell":       2,
	"immunity":             2,
	"molecular cell":       2,
}

// VenueTier returns the rank tier for an article: 0 for preprints,
// 1 for literature records from unlisted journals, higher for the
// flagship journals.
func VenueTier(a article.Article) int {
	if a.Source != article.SourceLiterature {
		return 0
	}
	if tier, ok := topVenues[strings.ToLower(a.Venue)]; ok {
		return tier
	}
	return 1
}

// Rank sorts articles in place by the tie-break chain: venue tier
// descending, published time descending, then ID ascending. Re-sorting
// a shuffled ranked list reproduces the original order.
func Rank(articles []article.Article) {
	sort.Slice(articles, func(i, j int) bool {
		ti, tj := VenueTier(articles[i]), VenueTier(articles[j])
		if ti != tj {
			return ti > tj
		}
		if !articles[i].PublishedAt.Equal(articles[j].PublishedAt) {
			return articles[i].PublishedAt.After(articles[j].PublishedAt)
		}
		return articles[i].ID < articles[j].ID
	})
}
