package intent

import "testing"

func TestClassifyYesNo(t *testing.T) {
	tests := []struct {
		text string
		want Answer
	}{
		{"sí", Positive},
		{"Si", Positive},
		{"SÍ, claro", Positive},
		{"claro que sí", Positive},
		{"ok", Positive},
		{"Acepto 👍", Positive},
		{"soy pensionado", Positive},
		{"Sip", Positive},
		{"siii", Positive},
		{"okey", Positive},
		{"okis", Positive},
		{"claroo", Positive},
		{"aceptó", Positive},
		{"de acuerdo", Positive},
		{"no", Negative},
		{"No.", Negative},
		{"nop", Negative},
		{"negativo", Negative},
		{"no soy pensionado", Negative},
		{"bueno", Negative},
		{"sí, cambio mi nómina", Negative},
		{"tal vez", Neutral},
		{"8500", Neutral},
		{"", Neutral},
		{"   ", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ClassifyYesNo(tt.text); got != tt.want {
				t.Errorf("ClassifyYesNo(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenListsDisjoint(t *testing.T) {
	neg := make(map[string]bool, len(negativeTokens))
	for _, n := range negativeTokens {
		neg[n] = true
	}
	for _, p := range positiveTokens {
		if neg[p] {
			t.Errorf("token %q is both positive and negative", p)
		}
	}
}

func TestEveryPositiveTokenClassifiesPositive(t *testing.T) {
	for _, tok := range positiveTokens {
		if got := ClassifyYesNo("pues " + tok); got != Positive {
			t.Errorf("positive token %q classified %v", tok, got)
		}
	}
	for _, tok := range negativeTokens {
		if got := ClassifyYesNo(tok + " gracias"); got != Negative {
			t.Errorf("negative token %q classified %v", tok, got)
		}
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		text   string
		want   float64
		wantOK bool
	}{
		{"8500", 8500, true},
		{"$8,500", 8500, true},
		{"recibo $12,345.67 al mes", 12345.67, true},
		{"quiero 65000 pesos", 65000, true},
		{"65,000.00", 65000, true},
		{"unos 40000", 40000, true},
		{"1234567890", 123456789, true},
		{"0.5", 0.5, true},
		{"a las 10:30", 0, false},
		{"8500 a las 5:00", 0, false},
		{"no sé", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ExtractAmount(tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractAmount(%q) = (%v, %v), want (%v, %v)", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDetectCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
	}{
		{"menu", CommandMenu},
		{"Menú", CommandMenu},
		{"MENU!", CommandMenu},
		{"salir", CommandMenu},
		{"hola", CommandGreeting},
		{"¡Hola!", CommandGreeting},
		{"Buenos días", CommandGreeting},
		{"hola, quiero un préstamo", CommandNone},
		{"quiero ver el menu", CommandNone},
		{"sí", CommandNone},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := DetectCommand(tt.text); got != tt.want {
				t.Errorf("DetectCommand(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestKeywords(t *testing.T) {
	loan := []string{"préstamo", "Prestamos", "IMSS", "soy de la ley 73", "pensión", "mi pension"}
	for _, s := range loan {
		if !IsLoanRequest(s) {
			t.Errorf("IsLoanRequest(%q) = false", s)
		}
	}
	if IsLoanRequest("seguro de auto") {
		t.Error("seguro de auto is not a loan request")
	}
	if !IsBusinessRequest("crédito para mi negocio") {
		t.Error("expected business request")
	}
	if !IsAdvisorRequest("quiero hablar con un asesor") {
		t.Error("expected advisor request")
	}
	if got := MenuChoice("1️⃣"); got != 1 {
		t.Errorf("MenuChoice(keycap 1) = %d", got)
	}
	if got := MenuChoice(" 2 "); got != 2 {
		t.Errorf("MenuChoice(2) = %d", got)
	}
	if got := MenuChoice("8500"); got != 0 {
		t.Errorf("MenuChoice(8500) = %d", got)
	}
}

func TestLooksLikeQuestion(t *testing.T) {
	if !LooksLikeQuestion("¿Qué documentos necesito?") {
		t.Error("expected question")
	}
	if !LooksLikeQuestion("como funciona el prestamo") {
		t.Error("expected question by starter word")
	}
	if LooksLikeQuestion("gracias") {
		t.Error("gracias is not a question")
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Juan Pérez", "Juan Pérez", true},
		{"  María   José  ", "María José", true},
		{"Ñoño", "Ñoño", true},
		{"J", "", false},
		{"Juan 2", "", false},
		{"juan@mail.com", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseName(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"668 247 8005", "6682478005", true},
		{"+52 1 (668) 247-8005", "5216682478005", true},
		{"12345", "", false},
		{"1234567890123456", "", false},
		{"66824780ab", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePhone(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePhone(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if !IsSamePhone("El mismo") {
		t.Error("expected 'El mismo' to mean the sender number")
	}
}

func TestParseCity(t *testing.T) {
	if c, ok := ParseCity(" Los  Mochis "); !ok || c != "Los Mochis" {
		t.Errorf("ParseCity = (%q, %v)", c, ok)
	}
	if _, ok := ParseCity("12345"); ok {
		t.Error("digits only should be rejected")
	}
	if _, ok := ParseCity("a"); ok {
		t.Error("single rune should be rejected")
	}
}
