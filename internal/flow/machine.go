// Package flow implements Vicky's sales funnels as an explicit state machine.
//
// Machine is pure: given a session and the user's text it returns the
// replies, the next session (or nil when the funnel ends) and, on terminal
// success, the lead outcome to forward to the advisor. Manager adds storage
// and per-sender serialization around it.
package flow

import (
	"github.com/BTreeMap/Vicky/internal/intent"
	"github.com/BTreeMap/Vicky/internal/models"
)

// Default thresholds for the IMSS Ley 73 funnel, in MXN.
const (
	DefaultMinPension = 5000
	DefaultMinLoan    = 40000
)

// Config controls funnel policy.
type Config struct {
	MinPension     float64 // monthly pension below this disqualifies
	MinLoan        float64 // requested loan below this is re-prompted
	CollectContact bool    // ask name, phone and city after payroll consent
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{MinPension: DefaultMinPension, MinLoan: DefaultMinLoan}
}

// Step is the result of applying one user message to an active session.
type Step struct {
	Replies []string
	// Next is the session to persist. Nil ends the funnel and clears the session.
	Next *models.Session
	// Outcome is set when the advisor must be notified; Final then holds
	// the answers the lead is built from. Next may be set too when the
	// funnel continues after the notification.
	Outcome models.LeadOutcome
	Final   *models.Session
}

type handler func(m *Machine, s models.Session, text string) Step

// Machine holds the transition table for every stored state.
type Machine struct {
	cfg      Config
	handlers map[models.StateType]handler
}

// NewMachine builds the transition table.
func NewMachine(cfg Config) *Machine {
	return &Machine{
		cfg: cfg,
		handlers: map[models.StateType]handler{
			models.StateEligibility:    (*Machine).eligibility,
			models.StatePensionAmount:  (*Machine).pensionAmount,
			models.StateLoanAmount:     (*Machine).loanAmount,
			models.StatePayrollConsent: (*Machine).payrollConsent,
			models.StateBizCreditType:  (*Machine).bizCreditType,
			models.StateBizOwner:       (*Machine).bizOwner,
			models.StateBizIndustry:    (*Machine).bizIndustry,
			models.StateBizAmount:      (*Machine).bizAmount,
			models.StateContactName:    (*Machine).contactName,
			models.StateContactPhone:   (*Machine).contactPhone,
			models.StateContactCity:    (*Machine).contactCity,
		},
	}
}

// Config returns the policy the machine was built with.
func (m *Machine) Config() Config { return m.cfg }

// Start opens a funnel for sender and returns the first prompt(s).
func (m *Machine) Start(flow models.FlowType, senderID string) (models.Session, []string) {
	s := models.Session{SenderID: senderID, Flow: flow}
	switch flow {
	case models.FlowTypeBusinessCredit:
		s.State = models.StateBizCreditType
		return s, []string{bizIntroText, askCreditTypeText}
	default:
		s.Flow = models.FlowTypeIMSSLoan
		s.State = models.StateEligibility
		return s, []string{eligibilityPrompt}
	}
}

// Step applies text to s. ok is false when s is in a state with no handler.
func (m *Machine) Step(s models.Session, text string) (step Step, ok bool) {
	h, ok := m.handlers[s.State]
	if !ok {
		return Step{}, false
	}
	return h(m, s, text), true
}

func stay(s models.Session, replies ...string) Step {
	return Step{Replies: replies, Next: &s}
}

func advance(s models.Session, next models.StateType, replies ...string) Step {
	s.State = next
	return Step{Replies: replies, Next: &s}
}

// disqualify ends the funnel without a lead.
func disqualify(replies ...string) Step {
	return Step{Replies: replies}
}

func finish(s models.Session, outcome models.LeadOutcome, replies ...string) Step {
	return Step{Replies: replies, Outcome: outcome, Final: &s}
}

func (m *Machine) eligibility(s models.Session, text string) Step {
	switch intent.ClassifyYesNo(text) {
	case intent.Negative:
		return disqualify(notEligibleText, MenuText)
	case intent.Positive:
		return advance(s, models.StatePensionAmount, askPensionText)
	default:
		return stay(s, eligibilityReprompt)
	}
}

func (m *Machine) pensionAmount(s models.Session, text string) Step {
	amount, ok := intent.ExtractAmount(text)
	if !ok {
		return stay(s, pensionReprompt)
	}
	if amount < m.cfg.MinPension {
		return disqualify(pensionTooLowText(m.cfg.MinPension), MenuText)
	}
	s.Collected.PensionAmount = models.Float(amount)
	return advance(s, models.StateLoanAmount, askLoanText(m.cfg.MinLoan))
}

// loanAmount rejects amounts under the minimum without changing state, so
// repeating the same amount yields the same reply.
func (m *Machine) loanAmount(s models.Session, text string) Step {
	amount, ok := intent.ExtractAmount(text)
	if !ok {
		return stay(s, loanReprompt)
	}
	if amount < m.cfg.MinLoan {
		return stay(s, loanTooLowText(m.cfg.MinLoan))
	}
	s.Collected.RequestedAmount = models.Float(amount)
	return advance(s, models.StatePayrollConsent, qualifiedText, askPayrollText)
}

func (m *Machine) payrollConsent(s models.Session, text string) Step {
	answer := intent.ClassifyYesNo(text)
	if answer == intent.Neutral {
		return stay(s, payrollReprompt)
	}
	accepted := answer == intent.Positive
	s.Collected.PayrollConsent = models.Bool(accepted)

	if m.cfg.CollectContact {
		if accepted {
			return advance(s, models.StateContactName, payrollAcceptedText, benefitsText, askNameText)
		}
		return advance(s, models.StateContactName, payrollDeclinedText, askNameText)
	}
	if accepted {
		return finish(s, models.LeadOutcomePayrollAccepted, payrollAcceptedText, benefitsText)
	}
	return finish(s, models.LeadOutcomePayrollDeclined, payrollDeclinedText)
}

func (m *Machine) bizCreditType(s models.Session, text string) Step {
	creditType, ok := intent.ParseFreeText(text)
	if !ok {
		return stay(s, creditTypeReprompt)
	}
	s.Collected.CreditType = creditType
	return advance(s, models.StateBizOwner, askOwnerText)
}

func (m *Machine) bizOwner(s models.Session, text string) Step {
	switch intent.ClassifyYesNo(text) {
	case intent.Negative:
		return disqualify(notOwnerText, MenuText)
	case intent.Positive:
		s.Collected.BusinessOwner = models.Bool(true)
		return advance(s, models.StateBizIndustry, askIndustryText)
	default:
		return stay(s, ownerReprompt)
	}
}

func (m *Machine) bizIndustry(s models.Session, text string) Step {
	industry, ok := intent.ParseFreeText(text)
	if !ok {
		return stay(s, industryReprompt)
	}
	s.Collected.Industry = industry
	return advance(s, models.StateBizAmount, askBizAmountText)
}

func (m *Machine) bizAmount(s models.Session, text string) Step {
	amount, ok := intent.ExtractAmount(text)
	if !ok || amount <= 0 {
		return stay(s, bizAmountReprompt)
	}
	s.Collected.RequestedAmount = models.Float(amount)
	// The advisor hears about the prospect now, before contact collection,
	// so a sender who stops answering is not lost.
	step := advance(s, models.StateContactName, bizThanksText, askNameText)
	step.Outcome = models.LeadOutcomeBusinessQualified
	step.Final = &s
	return step
}

func (m *Machine) contactName(s models.Session, text string) Step {
	name, ok := intent.ParseName(text)
	if !ok {
		return stay(s, nameReprompt)
	}
	s.Collected.Name = name
	return advance(s, models.StateContactPhone, askPhoneText)
}

func (m *Machine) contactPhone(s models.Session, text string) Step {
	phone := s.SenderID
	if !intent.IsSamePhone(text) {
		var ok bool
		if phone, ok = intent.ParsePhone(text); !ok {
			return stay(s, phoneReprompt)
		}
	}
	s.Collected.Phone = phone
	return advance(s, models.StateContactCity, askCityText)
}

func (m *Machine) contactCity(s models.Session, text string) Step {
	city, ok := intent.ParseCity(text)
	if !ok {
		return stay(s, cityReprompt)
	}
	s.Collected.City = city
	return finish(s, models.LeadOutcomeContactComplete, contactDoneText)
}
