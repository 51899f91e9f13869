// Package messaging connects WhatsApp providers to the funnel: each provider
// is a Service, and the Dispatcher routes inbound text through flow.Manager.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/BTreeMap/Vicky/internal/models"
)

const (
	// DefaultChannelBufferSize is the inbound channel capacity of every service.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an emit waits on a full channel.
	DefaultChannelTimeout = 1 * time.Second
	// minPhoneDigits is the shortest recipient accepted after canonicalization.
	minPhoneDigits = 6
)

// ErrServiceStopped is returned by sends after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

var nonDigitRegex = regexp.MustCompile(`\D`)

// Service is a pluggable WhatsApp provider.
type Service interface {
	// ValidateAndCanonicalizeRecipient returns the provider's form of recipient.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g. event subscriptions).
	Start(ctx context.Context) error

	// Stop stops background processing and closes Inbound.
	Stop() error

	// Inbound delivers messages the provider pushes to us. Webhook-driven
	// providers hand messages to the Dispatcher directly and never emit here.
	Inbound() <-chan models.InboundMessage
}

// canonicalPhone strips everything but digits and enforces a minimum length.
func canonicalPhone(component, recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := nonDigitRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < minPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, minPhoneDigits)
	}
	if canonical != recipient {
		slog.Debug(component+" canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// inboundQueue is the stoppable inbound channel shared by the services.
type inboundQueue struct {
	mu      sync.RWMutex
	ch      chan models.InboundMessage
	stopped bool
}

func newInboundQueue() *inboundQueue {
	return &inboundQueue{ch: make(chan models.InboundMessage, DefaultChannelBufferSize)}
}

func (q *inboundQueue) isStopped() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stopped
}

// emit pushes msg, dropping it when stopped or when the channel stays full.
func (q *inboundQueue) emit(component string, msg models.InboundMessage) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		slog.Warn(component+" dropping inbound message (service stopped)", "from", msg.From)
		return false
	}
	select {
	case q.ch <- msg:
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(component+" inbound channel blocked, dropping message", "from", msg.From, "timeout", DefaultChannelTimeout)
		return false
	}
}

// stop closes the channel once. Holding the write lock waits out any emit in flight.
func (q *inboundQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	close(q.ch)
}
