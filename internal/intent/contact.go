package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinNameLength is the shortest accepted applicant name, in runes.
	MinNameLength = 2
	// MinPhoneDigits and MaxPhoneDigits bound a contact phone after separators are removed.
	MinPhoneDigits = 10
	MaxPhoneDigits = 15
	// MinCityLength is the shortest accepted city name, in runes.
	MinCityLength = 2
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "+", "")

var samePhoneWords = []string{"mismo", "este", "este numero", "el mismo", "este mismo"}

// ParseName accepts letters (accented included) and spaces only.
func ParseName(text string) (string, bool) {
	name := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(name) < MinNameLength {
		return "", false
	}
	for _, r := range name {
		if r != ' ' && !unicode.IsLetter(r) {
			return "", false
		}
	}
	return name, true
}

// ParsePhone strips separators and accepts 10 to 15 digits.
func ParsePhone(text string) (string, bool) {
	digits := phoneSeparators.Replace(strings.TrimSpace(text))
	if len(digits) < MinPhoneDigits || len(digits) > MaxPhoneDigits {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return digits, true
}

// IsSamePhone reports whether the user means "use the number I'm writing from".
func IsSamePhone(text string) bool {
	c := Compact(text)
	for _, w := range samePhoneWords {
		if c == w {
			return true
		}
	}
	return false
}

// ParseCity accepts any text of at least two runes that is not just digits.
func ParseCity(text string) (string, bool) {
	city := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(city) < MinCityLength {
		return "", false
	}
	if strings.IndexFunc(city, unicode.IsLetter) < 0 {
		return "", false
	}
	return city, true
}

// ParseFreeText accepts any reply with at least two letters, used for
// open questions like industry or credit type.
func ParseFreeText(text string) (string, bool) {
	return ParseCity(text)
}
