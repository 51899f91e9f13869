package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var amountRegex = regexp.MustCompile(`\d{1,9}(?:\.\d+)?`)

var amountNoise = strings.NewReplacer(",", "", "$", "")

// ExtractAmount returns the first number in text. Commas and dollar signs
// are dropped first, so "$65,000.50" yields 65000.5. Text containing ':'
// is refused outright to avoid reading "10:30" as an amount.
func ExtractAmount(text string) (float64, bool) {
	if strings.Contains(text, ":") {
		return 0, false
	}
	match := amountRegex.FindString(amountNoise.Replace(text))
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
