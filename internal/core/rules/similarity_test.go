package rules

import "testing"

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("abc", "abc"); got != 1.0 {
		t.Fatalf("identical = %v, want 1.0", got)
	}
	if got := Ratio("", ""); got != 1.0 {
		t.Fatalf("both empty = %v, want 1.0", got)
	}
	if got := Ratio("abcd", "wxyz"); got != 0 {
		t.Fatalf("disjoint = %v, want 0", got)
	}
	if got := Ratio("abcd", "abce"); got != 0.75 {
		t.Fatalf("one edit in four = %v, want 0.75", got)
	}
}

func TestPartialRatio(t *testing.T) {
	if got := PartialRatio("ref123", "transfer ref123 john"); got != 1.0 {
		t.Fatalf("substring = %v, want 1.0", got)
	}
	if got := PartialRatio("", "anything"); got != 0 {
		t.Fatalf("empty vs non-empty = %v, want 0", got)
	}
}

func TestTokenSortRatio(t *testing.T) {
	if got := TokenSortRatio("john doe transfer", "transfer john doe"); got != 1.0 {
		t.Fatalf("reordered tokens = %v, want 1.0", got)
	}
}

func TestTokenSetRatio(t *testing.T) {
	// the shared core matches one side exactly
	if got := TokenSetRatio("transfer john doe", "transfer john doe extra words"); got != 1.0 {
		t.Fatalf("subset tokens = %v, want 1.0", got)
	}
}

func TestTokenRatiosSplitOnDelimiters(t *testing.T) {
	// slash- and hyphen-delimited references carry no whitespace; the token
	// ratios must still see their parts
	if got := TokenSortRatio("gtb/trf/2025/001", "trf gtb 001 2025"); got != 1.0 {
		t.Fatalf("reordered delimited tokens = %v, want 1.0", got)
	}
	if got := TokenSetRatio("nip/gtb/00123", "nip-gtb-00123-extra"); got != 1.0 {
		t.Fatalf("delimited subset tokens = %v, want 1.0", got)
	}

	a, b := "gtb/trf/2025/001", "gtb-transfer-2025-001"
	plain := Ratio(a, b)
	if got := TokenSortRatio(a, b); got <= plain {
		t.Fatalf("TokenSortRatio = %v, want above plain ratio %v", got, plain)
	}
	if got := TokenSetRatio(a, b); got <= plain {
		t.Fatalf("TokenSetRatio = %v, want above plain ratio %v", got, plain)
	}
}

func TestBestSimilarityBounds(t *testing.T) {
	pairs := [][2]string{
		{"nip/gtb/00123", "nip gtb 00123"},
		{"transfer from john", "john transfer"},
		{"", ""},
		{"abc", "xyz"},
	}
	for _, p := range pairs {
		got := BestSimilarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Fatalf("BestSimilarity(%q, %q) = %v, out of [0,1]", p[0], p[1], got)
		}
		if sym := BestSimilarity(p[1], p[0]); sym != got {
			t.Fatalf("BestSimilarity not symmetric for %v: %v vs %v", p, got, sym)
		}
	}
}
