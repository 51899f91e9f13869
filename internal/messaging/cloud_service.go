package messaging

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/Vicky/internal/models"
)

// TextSender is the Cloud API call CloudService needs. *cloudapi.Client satisfies it.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// CloudService implements Service over the Meta WhatsApp Cloud API. Inbound
// messages arrive through the webhook handler, not through Inbound.
type CloudService struct {
	client TextSender
	queue  *inboundQueue
}

func NewCloudService(client TextSender) *CloudService {
	return &CloudService{client: client, queue: newInboundQueue()}
}

func (s *CloudService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalPhone("CloudService", recipient)
}

func (s *CloudService) Start(ctx context.Context) error {
	return nil
}

func (s *CloudService) Stop() error {
	s.queue.stop()
	slog.Info("CloudService stopped")
	return nil
}

// SendMessage sends body through the Cloud API.
func (s *CloudService) SendMessage(ctx context.Context, to string, body string) error {
	if s.queue.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("CloudService.SendMessage: validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendText(ctx, canonicalTo, body); err != nil {
		slog.Error("CloudService.SendMessage: send failed", "error", err, "to", canonicalTo)
		return err
	}
	slog.Debug("CloudService.SendMessage: sent", "to", canonicalTo, "body_length", len(body))
	return nil
}

func (s *CloudService) Inbound() <-chan models.InboundMessage {
	return s.queue.ch
}
