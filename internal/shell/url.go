package shell

import (
	"net/url"
	"strings"
)

// DefaultSearchURL receives the escaped query appended.
const DefaultSearchURL = "https://www.google.com/search?q="

var schemePrefixes = []string{"http://", "https://", "about:", "data:", "file:"}

// NormalizeURL turns address-bar input into a URL. Inputs with a known
// scheme pass through, dotted inputs without spaces get https://, and
// anything else becomes a search.
func NormalizeURL(input, searchURL string) string {
	in := strings.TrimSpace(input)
	lower := strings.ToLower(in)
	for _, p := range schemePrefixes {
		if strings.HasPrefix(lower, p) {
			return in
		}
	}
	if strings.Contains(in, ".") && !strings.ContainsAny(in, " \t") {
		return "https://" + in
	}
	return SearchURL(searchURL, in)
}

// SearchURL builds the search-engine URL for query. Spaces are sent as %20.
func SearchURL(searchURL, query string) string {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	return searchURL + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}
