package messaging

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/Vicky/internal/models"
	"github.com/BTreeMap/Vicky/internal/twiliowhatsapp"
	"github.com/twilio/twilio-go/client"
)

// TwilioSignatureHeader carries Twilio's request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

var (
	// ErrInvalidTwilioSignature is returned when a webhook fails signature validation.
	ErrInvalidTwilioSignature = errors.New("invalid twilio signature")
	ErrMissingTwilioSender    = errors.New("twilio webhook missing From")
)

// TwilioService implements Service using the Twilio API.
type TwilioService struct {
	client    twiliowhatsapp.Sender // real Twilio client or MockClient
	queue     *inboundQueue
	validator *client.RequestValidator
	publicURL string
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithTwilioSignature enables X-Twilio-Signature validation. publicURL must be
// the exact webhook URL configured in the Twilio console.
func WithTwilioSignature(authToken, publicURL string) TwilioOption {
	return func(s *TwilioService) {
		if authToken == "" || publicURL == "" {
			return
		}
		v := client.NewRequestValidator(authToken)
		s.validator = &v
		s.publicURL = publicURL
	}
}

// NewTwilioService creates a TwilioService over a Twilio sender.
func NewTwilioService(sender twiliowhatsapp.Sender, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{client: sender, queue: newInboundQueue()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAndCanonicalizeRecipient accepts bare numbers and whatsapp: addresses.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalPhone("TwilioService", twiliowhatsapp.StripAddress(recipient))
}

// Start is a no-op for Twilio; inbound traffic arrives by webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

func (s *TwilioService) Stop() error {
	s.queue.stop()
	slog.Info("TwilioService stopped")
	return nil
}

// SendMessage sends a message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.queue.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.SendMessage: validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

func (s *TwilioService) Inbound() <-chan models.InboundMessage {
	return s.queue.ch
}

// ParseWebhook reads a Twilio form webhook into an inbound message.
// Messages with media and no text are reported as non-text.
func (s *TwilioService) ParseWebhook(r *http.Request) (models.InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return models.InboundMessage{}, err
	}
	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !s.validator.Validate(s.publicURL, params, r.Header.Get(TwilioSignatureHeader)) {
			return models.InboundMessage{}, ErrInvalidTwilioSignature
		}
	}

	from := twiliowhatsapp.StripAddress(r.FormValue("From"))
	if from == "" {
		return models.InboundMessage{}, ErrMissingTwilioSender
	}
	msg := models.InboundMessage{
		ID:   r.FormValue("MessageSid"),
		From: from,
		Type: models.MessageTypeText,
		Body: r.FormValue("Body"),
		Time: time.Now().Unix(),
	}
	if strings.TrimSpace(msg.Body) == "" {
		msg.Type = models.MessageTypeUnknown
		if n, _ := strconv.Atoi(r.FormValue("NumMedia")); n > 0 {
			msg.Type = mediaType(r.FormValue("MediaContentType0"))
		}
	}
	slog.Debug("TwilioService.ParseWebhook: inbound message", "from", msg.From, "type", msg.Type, "id", msg.ID)
	return msg, nil
}

func mediaType(contentType string) models.MessageType {
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return models.MessageTypeAudio
	case strings.HasPrefix(contentType, "image/"), strings.HasPrefix(contentType, "video/"):
		return models.MessageTypeImage
	default:
		return models.MessageTypeUnknown
	}
}
