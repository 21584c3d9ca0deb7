// Package search provides the small, deterministic text helpers shared by the
// identity, chat and notification layers: handle slugs, message text
// normalization, rune-safe truncation and Unicode case-insensitive matching.
//
//   - No logging in the library (callers decide how/what to log)
//   - No state; every helper is safe for concurrent use
package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxHandleRunes caps a normalized handle.
const MaxHandleRunes = 60

// Slugify lowers s, strips accents, drops anything outside [a-z0-9_ -] and
// collapses runs of spaces and hyphens into a single hyphen. Leading and
// trailing hyphens/underscores are removed. "João da Silva" -> "joao-da-silva".
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r > unicode.MaxASCII:
			continue
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingSep = true
		}
	}
	return strings.Trim(b.String(), "-_")
}

// NormalizeHandle turns raw user input into a handle slug: trimmed, one
// leading "@" removed, slugified and capped at MaxHandleRunes.
func NormalizeHandle(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "@")
	return Truncate(Slugify(raw), MaxHandleRunes)
}

// NormalizeText converts CRLF/CR line endings to LF and trims surrounding
// whitespace.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Fold returns the Unicode case-folded form of s for case-insensitive
// comparisons ("ÁGUA" and "água" fold to the same string).
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether needle occurs in haystack ignoring case.
// An empty needle matches everything.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}
