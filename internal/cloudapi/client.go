// Package cloudapi talks to the Meta WhatsApp Cloud API: sending text
// messages and decoding webhook deliveries.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Graph API root messages are posted under.
	DefaultBaseURL = "https://graph.facebook.com/v20.0"
	// DefaultTimeout bounds a single send.
	DefaultTimeout = 15 * time.Second
	// maxErrorBody caps how much of a failed response is kept in the error.
	maxErrorBody = 2048
)

// ErrNotConfigured is returned by SendText when the token or phone number ID is missing.
var ErrNotConfigured = errors.New("cloud api token or phone number id not configured")

// Opts holds configuration for the Cloud API client.
type Opts struct {
	Token      string
	PhoneID    string
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures the Cloud API client.
type Option func(*Opts)

// WithToken sets the bearer access token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithPhoneID sets the WhatsApp Business phone number ID.
func WithPhoneID(id string) Option {
	return func(o *Opts) { o.PhoneID = id }
}

// WithBaseURL overrides the Graph API root, mainly for tests.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client sends messages through the Cloud API.
type Client struct {
	http    *http.Client
	baseURL string
	phoneID string
	token   string
}

// NewClient builds a client. Token and phone ID fall back to META_TOKEN and
// WABA_PHONE_ID. A client without them is still returned; its sends fail with
// ErrNotConfigured so the bot keeps answering webhooks while misconfigured.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("META_TOKEN")
	}
	if cfg.PhoneID == "" {
		cfg.PhoneID = os.Getenv("WABA_PHONE_ID")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	slog.Debug("cloudapi.NewClient", "token_set", cfg.Token != "", "phone_id_set", cfg.PhoneID != "", "base_url", cfg.BaseURL)

	return &Client{
		http:    cfg.HTTPClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		phoneID: cfg.PhoneID,
		token:   cfg.Token,
	}
}

// Configured reports whether sends can be attempted.
func (c *Client) Configured() bool {
	return c.token != "" && c.phoneID != ""
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

// SendText posts a text message to the recipient's WhatsApp number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("cloudapi: marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("cloudapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cloudapi: send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.Debug("cloudapi.SendText: message sent", "to", to, "status", resp.StatusCode)
	return nil
}

// StatusError is a non-2xx answer from the Graph API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cloudapi: HTTP %d: %s", e.Code, e.Body)
}
