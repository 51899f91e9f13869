package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/Vicky/internal/cloudapi"
	"github.com/BTreeMap/Vicky/internal/messaging"
	"github.com/BTreeMap/Vicky/internal/models"
)

// emptyTwiML acknowledges a Twilio webhook without an automatic reply.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// verifyHandler answers the Cloud API subscription handshake.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := cloudapi.VerifyChallenge(s.opts.VerifyToken, q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if !ok {
		slog.Warn("Server.verifyHandler: verification failed", "mode", q.Get("hub.mode"))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	slog.Info("Server.verifyHandler: webhook verified")
	writeTextResponse(w, http.StatusOK, "text/plain; charset=utf-8", challenge)
}

// webhookHandler processes a Cloud API delivery. Once the body is read and
// authenticated the answer is always 200, so Meta does not redeliver.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.opts.Metrics.ObserveWebhookLatency("cloud", time.Since(start).Seconds()) }()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		slog.Warn("Server.webhookHandler: body too large", "limit", tooLarge.Limit)
		writeJSONResponse(w, http.StatusRequestEntityTooLarge, models.Error("body too large"))
		return
	}
	if err != nil {
		slog.Error("Server.webhookHandler: read body failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("failed to read body"))
		return
	}
	if !cloudapi.VerifySignature(s.opts.AppSecret, body, r.Header.Get(cloudapi.SignatureHeader)) {
		slog.Warn("Server.webhookHandler: signature verification failed")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("invalid signature"))
		return
	}

	msgs, err := cloudapi.ParseWebhook(body)
	if err != nil {
		slog.Warn("Server.webhookHandler: unparseable payload", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}

	var errs []error
	for _, msg := range msgs {
		if err := s.handler.HandleInbound(r.Context(), msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("Server.webhookHandler: delivery handled with errors", "messages", len(msgs), "error", err)
	} else {
		slog.Debug("Server.webhookHandler: delivery handled", "messages", len(msgs))
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// twilioWebhookHandler processes an inbound Twilio message.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.opts.Metrics.ObserveWebhookLatency("twilio", time.Since(start).Seconds()) }()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	msg, err := s.opts.Twilio.ParseWebhook(r)
	switch {
	case errors.Is(err, messaging.ErrInvalidTwilioSignature):
		slog.Warn("Server.twilioWebhookHandler: signature verification failed")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	case err != nil:
		slog.Warn("Server.twilioWebhookHandler: bad request", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.handler.HandleInbound(r.Context(), msg); err != nil {
		slog.Warn("Server.twilioWebhookHandler: message handled with errors", "from", msg.From, "error", err)
	}
	writeTextResponse(w, http.StatusOK, "text/xml", emptyTwiML)
}
