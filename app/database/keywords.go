package database

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// keywordSeparator joins canonical keywords in storage. Control characters
// are rejected in keywords, so it can never appear inside one.
const keywordSeparator = "\x1f"

// CanonicalKeywords drops empty keywords, sorts the rest and removes
// duplicates. Keywords containing control characters are rejected.
func CanonicalKeywords(keywords []string) ([]string, error) {
	canonical := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.ContainsFunc(keyword, unicode.IsControl) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKeyword, keyword)
		}
		canonical = append(canonical, keyword)
	}

	slices.Sort(canonical)
	return slices.Compact(canonical), nil
}

// EncodeKeywords returns the storage form of a keyword set.
func EncodeKeywords(keywords []string) (string, error) {
	canonical, err := CanonicalKeywords(keywords)
	if err != nil {
		return "", err
	}
	return strings.Join(canonical, keywordSeparator), nil
}

// DecodeKeywords is the inverse of EncodeKeywords.
func DecodeKeywords(encoded string) []string {
	if encoded == "" {
		return []string{}
	}
	return strings.Split(encoded, keywordSeparator)
}

// hasKeywords reports whether every non-empty keyword in want is present in have.
func hasKeywords(have, want []string) bool {
	for _, keyword := range want {
		if keyword == "" {
			continue
		}
		if !slices.Contains(have, keyword) {
			return false
		}
	}
	return true
}
