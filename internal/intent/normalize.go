// Package intent maps free-text WhatsApp replies to the small set of
// signals the funnels act on: yes/no answers, amounts, commands, keywords
// and contact fields. Every function here is pure.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases text, strips diacritics and surrounding space, so
// "Sí" and "si" or "Préstamo" and "prestamo" compare equal.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		out = strings.ToLower(text)
	}
	return strings.TrimSpace(out)
}

// Words splits normalized text into letter/digit runs.
func Words(text string) []string {
	return strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Compact returns the normalized words joined by single spaces, dropping
// punctuation and emoji: "¡Hola!" → "hola", "1️⃣" → "1".
func Compact(text string) string {
	return strings.Join(Words(text), " ")
}
