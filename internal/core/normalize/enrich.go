package normalize

import (
	"strings"

	"alertrecon/internal/core/canon"
)

// enrichment confidence per evidence tier, domain strongest
const (
	confidenceDomain  = 0.95
	confidenceName    = 0.85
	confidenceSubject = 0.75
)

// Enrich resolves bank identity from sender metadata. Priority is sender
// domain, then display name, then subject; the first tier with a hit wins.
// nil when nothing matches
func Enrich(senderEmail, senderName, subject string) *canon.Enrichment {
	if a := matchDomain(senderEmail); a != nil {
		return enrichment(a, confidenceDomain)
	}
	if a := matchKeys(senderName); a != nil {
		return enrichment(a, confidenceName)
	}
	if a := matchKeys(subject); a != nil {
		return enrichment(a, confidenceSubject)
	}
	return nil
}

func enrichment(a *BankAlias, confidence float64) *canon.Enrichment {
	return &canon.Enrichment{
		BankCode:   a.Code,
		BankName:   a.Name,
		Category:   a.Category,
		Confidence: confidence,
	}
}

func matchDomain(email string) *BankAlias {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return nil
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" {
		return nil
	}
	for i := range bankAliases {
		for _, d := range bankAliases[i].Domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return &bankAliases[i]
			}
		}
	}
	return nil
}

func matchKeys(text string) *BankAlias {
	// alias keys match as lowercased space-stripped substrings
	flat := strings.ToLower(strings.ReplaceAll(text, " ", ""))
	if flat == "" {
		return nil
	}
	for i := range bankAliases {
		for _, k := range bankAliases[i].Keys {
			if strings.Contains(flat, k) {
				return &bankAliases[i]
			}
		}
	}
	return nil
}
