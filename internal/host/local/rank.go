package local

import (
	"net/url"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jask/hyprshell/internal/host"
)

// Rank filters visits to those matching query and orders them best match
// first. Substring hits on URL or title score zero; otherwise the smallest
// edit distance to a host label or title word is used, within a tolerance
// that grows with the query length. Ties keep their input order.
func Rank(visits []host.Visit, query string) []host.Visit {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return visits
	}
	maxDist := len(q) / 3
	if maxDist < 1 {
		maxDist = 1
	}

	type scored struct {
		v     host.Visit
		score int
	}
	var hits []scored
	for _, v := range visits {
		s := score(v, q)
		if s <= maxDist {
			hits = append(hits, scored{v, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score < hits[j].score })

	out := make([]host.Visit, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.v)
	}
	return out
}

func score(v host.Visit, q string) int {
	lowURL := strings.ToLower(v.URL)
	lowTitle := strings.ToLower(v.Title)
	if strings.Contains(lowURL, q) || strings.Contains(lowTitle, q) {
		return 0
	}
	best := -1
	for _, tok := range tokens(lowURL, lowTitle) {
		d := levenshtein.ComputeDistance(q, tok)
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return len(q)
	}
	return best
}

func tokens(rawURL, title string) []string {
	var out []string
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		out = append(out, strings.Split(u.Hostname(), ".")...)
	}
	out = append(out, strings.Fields(title)...)
	return out
}
