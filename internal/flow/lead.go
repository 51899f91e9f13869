package flow

import (
	"math"
	"strings"

	"github.com/BTreeMap/Vicky/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NotAvailable replaces any field the lead does not carry.
const NotAvailable = "N/D"

// Mexican peso amounts group thousands with "," and use "." for decimals,
// which is what the English printer produces.
var moneyPrinter = message.NewPrinter(language.English)

func formatMoney(v float64) string {
	if v == math.Trunc(v) {
		return moneyPrinter.Sprintf("$%d", int64(v))
	}
	return moneyPrinter.Sprintf("$%.2f", v)
}

func moneyOrNA(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return formatMoney(*v)
}

func textOrNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

func yesNoOrNA(v *bool, yes, no string) string {
	switch {
	case v == nil:
		return NotAvailable
	case *v:
		return yes
	default:
		return no
	}
}

// RenderLead formats the advisor notification for l. Every field of the
// lead's template is present; missing answers read N/D.
func RenderLead(l models.Lead) string {
	c := l.Collected
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	switch {
	case l.Outcome == models.LeadOutcomeContactRequest:
		b.WriteString("📞 *Solicitud de contacto*\n\n")
		line("📱 Número", textOrNA(l.SenderID))
		line("🛎️ Servicio", textOrNA(l.Service))
	case l.Flow == models.FlowTypeBusinessCredit:
		b.WriteString("🏢 *Nuevo prospecto empresarial*\n\n")
		line("📱 Número", textOrNA(l.SenderID))
		line("📄 Tipo de crédito", textOrNA(c.CreditType))
		line("🧑‍💼 Empresario", yesNoOrNA(c.BusinessOwner, "Sí", "No"))
		line("📌 Giro", textOrNA(c.Industry))
		line("💵 Monto", moneyOrNA(c.RequestedAmount))
		line("👤 Nombre", textOrNA(c.Name))
		line("📞 Teléfono de contacto", textOrNA(c.Phone))
		line("📍 Ciudad", textOrNA(c.City))
		if l.Outcome == models.LeadOutcomeBusinessQualified {
			b.WriteString("➡️ Esperando datos de contacto.\n")
		}
	default:
		b.WriteString("📢 *Nuevo prospecto IMSS Ley 73*\n\n")
		line("📱 Número", textOrNA(l.SenderID))
		line("💰 Pensión mensual", moneyOrNA(c.PensionAmount))
		line("💵 Monto solicitado", moneyOrNA(c.RequestedAmount))
		line("🏦 Cambio de nómina a Inbursa", yesNoOrNA(c.PayrollConsent, "Acepta ✅", "No acepta ❌"))
		line("👤 Nombre", textOrNA(c.Name))
		line("📞 Teléfono de contacto", textOrNA(c.Phone))
		line("📍 Ciudad", textOrNA(c.City))
	}
	return strings.TrimRight(b.String(), "\n")
}
