package models

import "time"

// LeadOutcome describes why a lead was forwarded to the advisor.
type LeadOutcome string

const (
	// LeadOutcomePayrollAccepted: IMSS prospect qualified and accepted the payroll switch.
	LeadOutcomePayrollAccepted LeadOutcome = "payroll_accepted"
	// LeadOutcomePayrollDeclined: IMSS prospect qualified but declined the payroll switch.
	LeadOutcomePayrollDeclined LeadOutcome = "payroll_declined"
	// LeadOutcomeBusinessQualified: business owner gave an amount; contact details still pending.
	LeadOutcomeBusinessQualified LeadOutcome = "business_qualified"
	// LeadOutcomeContactComplete: funnel finished with contact details collected.
	LeadOutcomeContactComplete LeadOutcome = "contact_complete"
	// LeadOutcomeContactRequest: user asked to talk to an advisor outside a funnel.
	LeadOutcomeContactRequest LeadOutcome = "contact_request"
)

// Lead is an immutable snapshot of a finished session, rendered once as
// text for the advisor.
type Lead struct {
	SenderID  string
	Flow      FlowType
	Outcome   LeadOutcome
	Service   string // requested service for contact requests
	Collected Collected
	CreatedAt time.Time
}

// NewLead snapshots a session. Pointer fields are copied so later session
// mutation cannot leak into the lead.
func NewLead(s Session, outcome LeadOutcome, now time.Time) Lead {
	c := s.Collected
	if c.PensionAmount != nil {
		c.PensionAmount = Float(*c.PensionAmount)
	}
	if c.RequestedAmount != nil {
		c.RequestedAmount = Float(*c.RequestedAmount)
	}
	if c.PayrollConsent != nil {
		c.PayrollConsent = Bool(*c.PayrollConsent)
	}
	if c.BusinessOwner != nil {
		c.BusinessOwner = Bool(*c.BusinessOwner)
	}
	return Lead{
		SenderID:  s.SenderID,
		Flow:      s.Flow,
		Outcome:   outcome,
		Collected: c,
		CreatedAt: now,
	}
}
