package rules

import (
	"sort"
	"strings"
	"unicode"
)

// String similarity on normalized references. All ratios return [0,1].
// Hand-rolled Levenshtein: the reference strings involved are short
// (tens of characters) so the O(len*len) matrix is cheap.
// Token ratios split on any non-alphanumeric rune, so slash- and
// hyphen-delimited bank references tokenize the same as spaced ones

// levenshtein returns the edit distance between a and b
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Ratio is plain normalized edit similarity
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// PartialRatio slides the shorter string over the longer one and returns
// the best window ratio
func PartialRatio(a, b string) float64 {
	sa, sb := []rune(a), []rune(b)
	if len(sa) > len(sb) {
		sa, sb = sb, sa
	}
	if len(sa) == 0 {
		if len(sb) == 0 {
			return 1.0
		}
		return 0.0
	}
	best := 0.0
	for i := 0; i+len(sa) <= len(sb); i++ {
		r := Ratio(string(sa), string(sb[i:i+len(sa)]))
		if r > best {
			best = r
		}
		if best == 1.0 {
			break
		}
	}
	return best
}

// TokenSortRatio compares the strings with their tokens sorted, so word
// order stops mattering
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares on the shared-token core: the intersection
// string against each full token set, best of both
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	var inter []string
	for tok := range ta {
		if tb[tok] {
			inter = append(inter, tok)
		}
	}
	if len(inter) == 0 {
		return Ratio(sortedTokens(a), sortedTokens(b))
	}
	sort.Strings(inter)
	core := strings.Join(inter, " ")
	r1 := Ratio(core, sortedTokens(a))
	r2 := Ratio(core, sortedTokens(b))
	if r1 > r2 {
		return r1
	}
	return r2
}

// BestSimilarity is the max of the four ratios on already-cleaned input
func BestSimilarity(a, b string) float64 {
	best := Ratio(a, b)
	if r := PartialRatio(a, b); r > best {
		best = r
	}
	if r := TokenSortRatio(a, b); r > best {
		best = r
	}
	if r := TokenSetRatio(a, b); r > best {
		best = r
	}
	return best
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sortedTokens(s string) string {
	toks := tokenize(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenize(s) {
		set[t] = true
	}
	return set
}
