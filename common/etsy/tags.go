package etsy

import (
	"strings"
	"unicode"

	"podmarket/common/helpers"
)

const (
	maxTags      = 13
	maxTagLength = 20
)

// SanitizeTags makes tags acceptable to Etsy: accents removed, lowercase, only letters, digits,
// spaces, dashes and apostrophes, at most 20 characters each and 13 in total, without duplicates.
func SanitizeTags(tags []string) []string {
	clean := []string{}
	seen := map[string]bool{}
	for _, tag := range tags {
		normalized, err := helpers.NormalizeString(tag)
		if err != nil {
			continue
		}
		normalized = strings.Map(func(r rune) rune {
			switch {
			case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '\'':
				return unicode.ToLower(r)
			case unicode.IsSpace(r):
				return ' '
			}
			return -1
		}, normalized)
		normalized = strings.Join(strings.Fields(normalized), " ")
		if runes := []rune(normalized); len(runes) > maxTagLength {
			normalized = strings.TrimSpace(string(runes[:maxTagLength]))
		}
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		clean = append(clean, normalized)
		if len(clean) == maxTags {
			break
		}
	}
	return clean
}
