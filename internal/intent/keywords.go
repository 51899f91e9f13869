package intent

import "strings"

// Command is a global instruction recognized in any state.
type Command int

const (
	CommandNone Command = iota
	// CommandMenu aborts any funnel and shows the service menu.
	CommandMenu
	// CommandGreeting resets the session and shows the greeting.
	CommandGreeting
)

var (
	menuCommands     = []string{"menu", "salir", "cancelar"}
	greetingCommands = []string{"hola", "inicio", "buenas", "buen dia", "buenos dias", "buenas tardes", "buenas noches"}

	loanKeywords     = []string{"prestamo", "imss", "pension", "ley 73"}
	businessKeywords = []string{"empresarial", "negocio", "empresa", "pyme"}
	advisorKeywords  = []string{"asesor", "hablar con", "llamenme", "llamame"}

	questionStarters = []string{"como", "que", "cuanto", "cuantos", "cuando", "donde", "cual", "cuales", "puedo", "necesito", "por que"}
)

// DetectCommand matches the whole message, so "menu" aborts but
// "quiero ver el menu de prestamos" does not.
func DetectCommand(text string) Command {
	c := Compact(text)
	for _, cmd := range menuCommands {
		if c == cmd {
			return CommandMenu
		}
	}
	for _, cmd := range greetingCommands {
		if c == cmd {
			return CommandGreeting
		}
	}
	return CommandNone
}

// MenuChoice returns the digit the user picked from the service menu, or 0.
func MenuChoice(text string) int {
	c := Compact(text)
	if len(c) == 1 && c[0] >= '1' && c[0] <= '9' {
		return int(c[0] - '0')
	}
	return 0
}

// IsLoanRequest reports whether text mentions the IMSS pension loan. Matching
// is by substring so plurals and "pensionado" also trigger it.
func IsLoanRequest(text string) bool {
	return containsAnySubstring(Normalize(text), loanKeywords)
}

// IsBusinessRequest reports whether text asks about business credit.
func IsBusinessRequest(text string) bool {
	return containsAnySubstring(Normalize(text), businessKeywords)
}

// IsAdvisorRequest reports whether the user asks to talk to a person.
func IsAdvisorRequest(text string) bool {
	return containsAnySubstring(Compact(text), advisorKeywords)
}

// LooksLikeQuestion is a cheap gate before spending a language-model call.
func LooksLikeQuestion(text string) bool {
	if strings.ContainsAny(text, "?¿") {
		return true
	}
	c := Compact(text)
	for _, w := range questionStarters {
		if strings.HasPrefix(c, w+" ") {
			return true
		}
	}
	return false
}

func containsAnySubstring(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
