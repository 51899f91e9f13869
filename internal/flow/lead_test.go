package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/Vicky/internal/models"
)

func TestRenderLeadSubstitutesMissingFields(t *testing.T) {
	sess := models.Session{
		SenderID: "5216680000000",
		Flow:     models.FlowTypeIMSSLoan,
		State:    models.StatePayrollConsent,
		Collected: models.Collected{
			PensionAmount: models.Float(8500),
		},
	}
	text := RenderLead(models.NewLead(sess, models.LeadOutcomePayrollAccepted, time.Now()))

	if !strings.Contains(text, "$8,500") {
		t.Errorf("present field missing:\n%s", text)
	}
	for _, label := range []string{"Monto solicitado", "Cambio de nómina a Inbursa", "Nombre", "Teléfono de contacto", "Ciudad"} {
		if !strings.Contains(text, label+": "+NotAvailable) {
			t.Errorf("%s should read %s:\n%s", label, NotAvailable, text)
		}
	}
	if strings.HasSuffix(text, "\n") {
		t.Error("rendered lead should not end with a newline")
	}
}

func TestRenderLeadContactRequest(t *testing.T) {
	text := RenderLead(models.Lead{SenderID: "5216680000000", Outcome: models.LeadOutcomeContactRequest})
	if !strings.Contains(text, "Solicitud de contacto") || !strings.Contains(text, "Servicio: "+NotAvailable) {
		t.Errorf("unexpected contact request text:\n%s", text)
	}
}

func TestRenderLeadBusinessOwnerUnknown(t *testing.T) {
	l := models.Lead{SenderID: "1", Flow: models.FlowTypeBusinessCredit, Outcome: models.LeadOutcomeContactComplete}
	if text := RenderLead(l); !strings.Contains(text, "Empresario: "+NotAvailable) {
		t.Errorf("missing owner flag should read N/D:\n%s", text)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := map[float64]string{
		0:        "$0",
		500:      "$500",
		40000:    "$40,000",
		1234567:  "$1,234,567",
		12345.67: "$12,345.67",
		0.5:      "$0.50",
	}
	for v, want := range tests {
		if got := formatMoney(v); got != want {
			t.Errorf("formatMoney(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestMachineUnknownState(t *testing.T) {
	m := NewMachine(DefaultConfig())
	if _, ok := m.Step(models.Session{State: models.StateIdle}, "hola"); ok {
		t.Error("idle has no handler")
	}
}

func TestMachineCustomThresholds(t *testing.T) {
	m := NewMachine(Config{MinPension: 4000, MinLoan: 20000})
	s := models.Session{SenderID: "1", Flow: models.FlowTypeIMSSLoan, State: models.StatePensionAmount}

	step, _ := m.Step(s, "4500")
	if step.Next == nil || step.Next.State != models.StateLoanAmount {
		t.Fatalf("4500 should pass a 4000 minimum, got %+v", step)
	}
	if !strings.Contains(step.Replies[0], "$20,000") {
		t.Errorf("loan prompt should use configured minimum: %q", step.Replies[0])
	}

	step, _ = m.Step(*step.Next, "25000")
	if step.Next == nil || step.Next.State != models.StatePayrollConsent {
		t.Fatalf("25000 should pass a 20000 minimum, got %+v", step)
	}
	if got := *step.Next.Collected.RequestedAmount; got != 25000 {
		t.Errorf("requested amount = %v", got)
	}
}

func TestMachineTimeIsNotAnAmount(t *testing.T) {
	m := NewMachine(DefaultConfig())
	s := models.Session{SenderID: "1", Flow: models.FlowTypeIMSSLoan, State: models.StatePensionAmount}
	step, _ := m.Step(s, "a las 10:30")
	if step.Next == nil || step.Next.State != models.StatePensionAmount || step.Replies[0] != pensionReprompt {
		t.Errorf("time-like text should re-prompt, got %+v", step)
	}
}
