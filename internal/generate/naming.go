package generate

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes characters and removes combining marks, so
// "Vertragsübersicht" becomes "Vertragsubersicht".
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitizeName reduces a template name to a filesystem- and header-safe
// token: diacritics stripped, runs of other characters collapsed to single
// underscores.
func sanitizeName(name string) string {
	flattened, _, err := transform.String(stripDiacritics, name)
	if err != nil {
		flattened = name
	}

	var sb strings.Builder
	lastUnderscore := false
	for _, r := range flattened {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && sb.Len() > 0 {
				sb.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(sb.String(), "_")
	if out == "" {
		return "document"
	}
	return out
}

// buildFileName assembles the output naming convention:
// {sanitizedTemplateName}_{timestamp}_{shortId}{extension}.
func buildFileName(templateName string, now time.Time, shortID, ext string) string {
	return sanitizeName(templateName) + "_" + now.Format("20060102150405") + "_" + shortID + ext
}
