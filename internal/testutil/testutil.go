// Package testutil provides common test utilities and helpers for Vicky tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BTreeMap/Vicky/internal/models"
)

// SentMessage is one message captured by RecordingService.
type SentMessage struct {
	To   string
	Body string
}

// RecordingService is an in-memory messaging service. It records every
// send and lets tests push inbound messages.
type RecordingService struct {
	mu      sync.Mutex
	sent    []SentMessage
	failTo  map[string]error
	inbound chan models.InboundMessage
	stopped bool
}

func NewRecordingService() *RecordingService {
	return &RecordingService{
		failTo:  make(map[string]error),
		inbound: make(chan models.InboundMessage, 16),
	}
}

// FailSendsTo makes every send to recipient return err.
func (s *RecordingService) FailSendsTo(recipient string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTo[recipient] = err
}

func (s *RecordingService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	return recipient, nil
}

func (s *RecordingService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("recording service stopped")
	}
	if err := s.failTo[to]; err != nil {
		return err
	}
	s.sent = append(s.sent, SentMessage{To: to, Body: body})
	return nil
}

func (s *RecordingService) Start(ctx context.Context) error { return nil }

func (s *RecordingService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.inbound)
	}
	return nil
}

func (s *RecordingService) Inbound() <-chan models.InboundMessage {
	return s.inbound
}

// Emit queues msg on Inbound.
func (s *RecordingService) Emit(msg models.InboundMessage) {
	s.inbound <- msg
}

// Sent returns a copy of every recorded message in send order.
func (s *RecordingService) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// BodiesTo returns the bodies sent to recipient in order.
func (s *RecordingService) BodiesTo(recipient string) []string {
	var out []string
	for _, m := range s.Sent() {
		if m.To == recipient {
			out = append(out, m.Body)
		}
	}
	return out
}

// Reset forgets recorded messages.
func (s *RecordingService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates its status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if status, ok := response["status"].(string); !ok {
		t.Error("response missing or invalid 'status' field")
	} else if status != expectedStatus {
		t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
	}
	return response
}

// CreateHTTPRequest creates a request with a raw body.
func CreateHTTPRequest(t *testing.T, method, url string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}
