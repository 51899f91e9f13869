package intent

// Answer is the outcome of yes/no classification.
type Answer int

const (
	// Neutral means neither list matched; callers re-prompt.
	Neutral Answer = iota
	Positive
	Negative
)

func (a Answer) String() string {
	switch a {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// Token lists are written already normalized (no accents) and must stay
// disjoint.
var (
	positiveTokens = []string{
		"si", "claro", "ok", "okay", "acepto", "afirmativo", "correcto",
		"de acuerdo", "por supuesto", "dispuesto", "me interesa",
		"pensionado", "jubilado", "yes",
	}
	negativeTokens = []string{
		"no", "nop", "nel", "negativo", "tampoco", "no soy", "no acepto",
	}
)

// ClassifyYesNo reports whether any negative token, then any positive
// token, occurs as a substring of the normalized reply. Substrings let
// "sip", "siii" and "okey" count as yes; checking negatives first keeps
// "no soy pensionado" from reading as a yes because of "pensionado".
func ClassifyYesNo(text string) Answer {
	n := Normalize(text)
	if n == "" {
		return Neutral
	}
	if containsAnySubstring(n, negativeTokens) {
		return Negative
	}
	if containsAnySubstring(n, positiveTokens) {
		return Positive
	}
	return Neutral
}
