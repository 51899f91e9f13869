// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType names a scripted sales funnel.
type FlowType string

// StateType names the next input a funnel expects from the user.
type StateType string

// Flow type constants.
const (
	FlowTypeIMSSLoan       FlowType = "imss_loan"
	FlowTypeBusinessCredit FlowType = "business_credit"
)

// State constants. StateIdle is never persisted: a sender without a stored
// session is idle.
const (
	StateIdle StateType = "idle"

	// IMSS Ley 73 pension-backed loan funnel
	StateEligibility    StateType = "eligibility"
	StatePensionAmount  StateType = "pension_amount"
	StateLoanAmount     StateType = "loan_amount"
	StatePayrollConsent StateType = "payroll_consent"

	// Business credit funnel
	StateBizCreditType StateType = "biz_credit_type"
	StateBizOwner      StateType = "biz_owner"
	StateBizIndustry   StateType = "biz_industry"
	StateBizAmount     StateType = "biz_amount"

	// Shared contact-collection sub-states
	StateContactName  StateType = "contact_name"
	StateContactPhone StateType = "contact_phone"
	StateContactCity  StateType = "contact_city"
)

// IsValidFlowType checks if the given flow type is supported.
func IsValidFlowType(ft FlowType) bool {
	switch ft {
	case FlowTypeIMSSLoan, FlowTypeBusinessCredit:
		return true
	default:
		return false
	}
}

// IsValidState checks if the given state can be stored in a session.
func IsValidState(st StateType) bool {
	switch st {
	case StateEligibility, StatePensionAmount, StateLoanAmount, StatePayrollConsent,
		StateBizCreditType, StateBizOwner, StateBizIndustry, StateBizAmount,
		StateContactName, StateContactPhone, StateContactCity:
		return true
	default:
		return false
	}
}
