// Package models defines the core data structures for Vicky.
//
// It includes inbound message records, API response envelopes and the
// session/lead types shared by the store, flow and messaging modules.
package models

import (
	"errors"
	"strings"
)

// MessageType is the provider-reported kind of an inbound message.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeImage is an image attachment.
	MessageTypeImage MessageType = "image"
	// MessageTypeAudio is a voice note or audio file.
	MessageTypeAudio MessageType = "audio"
	// MessageTypeInteractive is a button or list reply.
	MessageTypeInteractive MessageType = "interactive"
	// MessageTypeUnknown covers everything else.
	MessageTypeUnknown MessageType = "unknown"
)

// Error variables for better error handling and testability
var (
	ErrEmptySender    = errors.New("sender cannot be empty")
	ErrEmptyBody      = errors.New("text message body cannot be empty")
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
)

// InboundMessage is a single message received from a messaging provider,
// normalized across Cloud API, Twilio and whatsmeow.
type InboundMessage struct {
	ID   string      `json:"id,omitempty"` // provider message ID, used for de-duplication
	From string      `json:"from"`
	Type MessageType `json:"type"`
	Body string      `json:"body,omitempty"`
	Time int64       `json:"time"`
}

// IsText reports whether the message carries user text.
func (m InboundMessage) IsText() bool {
	return m.Type == MessageTypeText
}

// Validate checks the fields the dispatcher relies on.
func (m InboundMessage) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return ErrEmptySender
	}
	if m.IsText() && strings.TrimSpace(m.Body) == "" {
		return ErrEmptyBody
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
