// Package plate turns raw OCR text into canonical plate strings.
package plate

import "strings"

// Whitelist is the set of characters a canonical plate may contain.
// It doubles as the character whitelist handed to classical OCR engines.
const Whitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZÇĞİÖŞÜ0123456789-"

// Normalize maps raw recognized text to a canonical plate string:
// uppercase, restricted to Whitelist, with every letter O read as digit 0.
//
// The O->0 rewrite is position independent, so a plate that really carries
// the letter O comes out with a zero. Telling the two apart needs the
// regional plate format, which this package does not know about.
//
// Case mapping is rune for rune (unicode.ToUpper), never a full string
// casing: runes without a single-rune uppercase form, such as 'ß' or the
// ligature 'ﬁ', are not expanded to "SS" or "FI" and fall out with the other
// disallowed characters.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	upper := strings.ToUpper(raw)

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if !Allowed(r) {
			continue
		}
		if r == 'O' {
			r = '0'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Allowed reports whether r may appear in a canonical plate.
func Allowed(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-':
		return true
	}
	switch r {
	case 'Ç', 'Ğ', 'İ', 'Ö', 'Ş', 'Ü':
		return true
	}
	return false
}

// Join concatenates text fragments in the order given and normalizes the result.
func Join(fragments []string) string {
	return Normalize(strings.Join(fragments, ""))
}
