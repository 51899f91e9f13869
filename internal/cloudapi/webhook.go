package cloudapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/BTreeMap/Vicky/internal/models"
)

// SignatureHeader carries the HMAC of the webhook body.
const SignatureHeader = "X-Hub-Signature-256"

// WebhookPayload is the body Meta posts for message events.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Message is one inbound user message. Only text bodies are decoded.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// Status is a delivery report for an outbound message; it is ignored.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// ParseWebhook decodes a webhook body into inbound messages in delivery
// order. Status-only deliveries yield no messages and no error.
func ParseWebhook(body []byte) ([]models.InboundMessage, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("cloudapi: decode webhook: %w", err)
	}
	return payload.Messages(), nil
}

// Messages flattens entry[].changes[].value.messages[].
func (p WebhookPayload) Messages() []models.InboundMessage {
	var out []models.InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				out = append(out, m.toInbound())
			}
		}
	}
	return out
}

func (m Message) toInbound() models.InboundMessage {
	in := models.InboundMessage{
		ID:   m.ID,
		From: m.From,
		Type: messageType(m.Type),
	}
	if ts, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		in.Time = ts
	}
	if in.Type == models.MessageTypeText && m.Text != nil {
		in.Body = m.Text.Body
	}
	return in
}

func messageType(t string) models.MessageType {
	switch t {
	case "text":
		return models.MessageTypeText
	case "image", "sticker", "video", "document":
		return models.MessageTypeImage
	case "audio", "voice":
		return models.MessageTypeAudio
	case "interactive", "button":
		return models.MessageTypeInteractive
	default:
		return models.MessageTypeUnknown
	}
}

// VerifySignature checks a "sha256=<hex>" header against the HMAC-SHA256 of
// body keyed by appSecret. An empty secret disables the check.
func VerifySignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok || sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}

// VerifyChallenge answers the subscription handshake: it returns the
// challenge to echo and true when mode and token match.
func VerifyChallenge(verifyToken, mode, token, challenge string) (string, bool) {
	if verifyToken == "" || mode != "subscribe" || token != verifyToken {
		return "", false
	}
	return challenge, true
}
