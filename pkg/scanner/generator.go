package scanner

import "strings"

// GenerateCandidates joins every label with domain as "label.domain",
// preserving order and duplicates. Empty labels are skipped.
func GenerateCandidates(domain string, labels []string) []string {
	domain = NormalizeDomain(domain)

	candidates := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		candidates = append(candidates, label+"."+domain)
	}
	return candidates
}

// NormalizeDomain lower-cases domain and strips surrounding whitespace and dots
func NormalizeDomain(domain string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
}
