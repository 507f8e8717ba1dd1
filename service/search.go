package service

import "strings"

const maxSearchHistory = 5

// Shorter queries still filter but come back with a hint.
const minFilterLength = 2

var (
	popularSearches  = []string{"Laptop", "Smartphone", "Headphones", "Camera", "Tablet"}
	trendingSearches = []string{"Wireless Earbuds", "Gaming Mouse", "Smart Watch"}
)

// Suggestions groups what the search box offers for a query.
type Suggestions struct {
	Query    string   `json:"query"`
	History  []string `json:"history"`
	Popular  []string `json:"popular"`
	Trending []string `json:"trending"`
	// Hint is set when the query is too short to be meaningful.
	Hint string `json:"hint,omitempty"`
}

func (s Suggestions) Empty() bool {
	return len(s.History) == 0 && len(s.Popular) == 0 && len(s.Trending) == 0
}

// pushHistory puts q at the front of history, dropping case-insensitive
// duplicates and keeping at most maxSearchHistory entries.
func pushHistory(history []string, q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return history
	}
	out := make([]string, 0, maxSearchHistory)
	out = append(out, q)
	for _, h := range history {
		if len(out) == maxSearchHistory {
			break
		}
		if strings.EqualFold(h, q) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func buildSuggestions(history []string, query string) Suggestions {
	q := strings.TrimSpace(query)
	s := Suggestions{
		Query:    q,
		History:  filterContains(history, q),
		Popular:  filterContains(popularSearches, q),
		Trending: filterContains(trendingSearches, q),
	}
	if q != "" && len([]rune(q)) < minFilterLength {
		s.Hint = "Type at least 2 characters to see filtered suggestions"
	}
	return s
}

func filterContains(items []string, q string) []string {
	out := []string{}
	lq := strings.ToLower(q)
	for _, it := range items {
		if q == "" || strings.Contains(strings.ToLower(it), lq) {
			out = append(out, it)
		}
	}
	return out
}
