package messaging

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/Vicky/internal/models"
	"github.com/BTreeMap/Vicky/internal/whatsapp"
)

// inboundSource is the event side of *whatsapp.Client.
type inboundSource interface {
	OnMessage(fn func(models.InboundMessage))
}

// WhatsAppService implements Service using the whatsmeow-based client.
// Inbound messages are pushed onto Inbound as whatsmeow delivers them.
type WhatsAppService struct {
	client whatsapp.Sender
	source inboundSource
	queue  *inboundQueue
}

// NewWhatsAppService wraps client. When client is a *whatsapp.Client its
// message events feed Inbound after Start; mocks only send.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{client: client, queue: newInboundQueue()}
	if src, ok := client.(inboundSource); ok {
		s.source = src
		slog.Debug("WhatsAppService created with event source")
	} else {
		slog.Debug("WhatsAppService created without event source (likely mock)")
	}
	return s
}

func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalPhone("WhatsAppService", recipient)
}

// Start subscribes to inbound message events.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	s.source.OnMessage(func(msg models.InboundMessage) {
		if s.queue.emit("WhatsAppService", msg) {
			slog.Debug("WhatsAppService inbound message queued", "from", msg.From, "type", msg.Type)
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

func (s *WhatsAppService) Stop() error {
	s.queue.stop()
	slog.Info("WhatsAppService stopped")
	return nil
}

// SendMessage sends a text message through whatsmeow.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	if s.queue.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService.SendMessage: validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService.SendMessage: send failed", "error", err, "to", canonicalTo)
		return err
	}
	return nil
}

func (s *WhatsAppService) Inbound() <-chan models.InboundMessage {
	return s.queue.ch
}
