package organizations

import (
	"strings"
	"unicode"

	"github.com/bissquit/status-garden/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minSlugLength = 2
	maxSlugLength = 100
)

// NormalizeSlug turns free text into a URL-safe lowercase slug: accents are
// stripped, runs of other characters collapse into a single hyphen.
func NormalizeSlug(s string) (string, error) {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	hyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if len(slug) < minSlugLength {
		return "", &domain.ValidationError{Field: "slug", Reason: "must contain at least 2 letters or digits"}
	}
	return slug, nil
}
