package resolver

import (
	"strings"
	"unicode/utf8"
)

// RelevanceThreshold is the exclusive lower bound a match must beat to be
// suggested.
const RelevanceThreshold = 0.3

// CalculateMatchScore scores item against search. Rules are tried in order and
// the first one that applies wins:
//
//	exact name                    1.0  exact_name
//	name has search as prefix     0.8  edit_distance(0)
//	name has search as suffix     0.7  edit_distance(0)
//	edit distance d <= 2          (1 - d/len(name)) * 0.6  edit_distance(d)
//	full path contains search     0.4  type_matches (case-insensitive)
//	otherwise                     0.0  type_matches
//
// len(name) counts code points.
func CalculateMatchScore(search string, item ImportableItem) (float64, MatchType) {
	if search == item.Name {
		return 1.0, ExactName()
	}
	if strings.HasPrefix(item.Name, search) {
		return 0.8, EditDistance(0)
	}
	if strings.HasSuffix(item.Name, search) {
		return 0.7, EditDistance(0)
	}

	nameLen := utf8.RuneCountInString(item.Name)
	if d := EditDistanceOf(search, item.Name); d <= 2 && nameLen > 0 {
		score := 1.0 - float64(d)/float64(nameLen)
		return score * 0.6, EditDistance(d)
	}

	if strings.Contains(strings.ToLower(item.FullPath), strings.ToLower(search)) {
		return 0.4, TypeMatches()
	}
	return 0.0, TypeMatches()
}

// EditDistanceOf is the Levenshtein distance over code points with unit cost
// for insert, delete and substitute.
func EditDistanceOf(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	m, n := len(ra), len(rb)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = 1 + min(prev[j], curr[j-1], prev[j-1])
		}
		prev, curr = curr, prev
	}
	return prev[n]
}
