// Package models defines session and lead structures for Vicky funnels.
package models

import (
	"errors"
	"time"
)

var (
	ErrInvalidFlowType = errors.New("invalid flow type")
	ErrInvalidState    = errors.New("invalid session state")
)

// Collected holds the answers gathered so far in a funnel. Pointer fields
// distinguish "not asked yet" from a zero answer.
type Collected struct {
	PensionAmount   *float64 `json:"pension_amount,omitempty"`
	RequestedAmount *float64 `json:"requested_amount,omitempty"`
	PayrollConsent  *bool    `json:"payroll_consent,omitempty"`
	Name            string   `json:"name,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	City            string   `json:"city,omitempty"`

	// Business credit funnel
	CreditType    string `json:"credit_type,omitempty"`
	BusinessOwner *bool  `json:"business_owner,omitempty"`
	Industry      string `json:"industry,omitempty"`
}

// Session is the per-sender progress marker within a funnel.
type Session struct {
	SenderID  string    `json:"sender_id"`
	Flow      FlowType  `json:"flow"`
	State     StateType `json:"state"`
	Collected Collected `json:"collected"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that a session can be persisted.
func (s Session) Validate() error {
	if s.SenderID == "" {
		return ErrEmptySender
	}
	if !IsValidFlowType(s.Flow) {
		return ErrInvalidFlowType
	}
	if !IsValidState(s.State) {
		return ErrInvalidState
	}
	return nil
}

// Expired reports whether the session has been idle longer than ttl.
// A non-positive ttl never expires.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
