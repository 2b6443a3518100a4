package textutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	unsafeFileNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	// Device names Windows refuses regardless of extension.
	reservedFileNames = map[string]struct{}{
		"CON": {}, "AUX": {}, "COM1": {}, "COM2": {}, "COM3": {}, "COM4": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "PRN": {}, "NUL": {},
	}
)

// SecureFileName reduces an uploaded filename to a safe ASCII form usable as
// a single path segment. Accents are folded (é becomes e), path separators
// and whitespace become underscores, and every other character outside
// [A-Za-z0-9_.-] is dropped. Leading dots and underscores are removed so the
// result is never hidden or relative. An empty string means nothing usable
// remained.
func SecureFileName(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), name)
	if err != nil {
		folded = name
	}
	for _, sep := range []string{"/", "\\"} {
		folded = strings.ReplaceAll(folded, sep, " ")
	}
	folded = strings.Join(strings.Fields(folded), "_")
	folded = unsafeFileNameChars.ReplaceAllString(folded, "")
	folded = strings.Trim(folded, "._")
	if folded == "" {
		return ""
	}
	stem := strings.ToUpper(strings.SplitN(folded, ".", 2)[0])
	if _, reserved := reservedFileNames[stem]; reserved {
		folded = "_" + folded
	}
	return folded
}

// StemName returns a filename without its directory and final extension.
func StemName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Truncate shortens text to at most limit runes, appending "..." when cut.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
