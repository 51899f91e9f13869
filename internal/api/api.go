// Package api provides the HTTP server for Vicky.
//
// It exposes the WhatsApp Cloud API webhook (verification handshake and
// message delivery), an optional Twilio webhook, a health check and
// Prometheus metrics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/Vicky/internal/metrics"
	"github.com/BTreeMap/Vicky/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultServerAddress is used when no address is configured.
	DefaultServerAddress = ":8080"
	// maxWebhookBody caps webhook payloads read into memory.
	maxWebhookBody = 1 << 20
	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 10 * time.Second
)

// InboundHandler processes one normalized inbound message.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg models.InboundMessage) error
}

// TwilioParser turns a Twilio webhook request into an inbound message.
type TwilioParser interface {
	ParseWebhook(r *http.Request) (models.InboundMessage, error)
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr        string
	VerifyToken string // Meta webhook verification secret
	AppSecret   string // enables X-Hub-Signature-256 checks when set
	Twilio      TwilioParser
	Metrics     *metrics.FunnelMetrics
	// MetricsHandler serves /metrics; defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the secret echoed back during the Meta handshake.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithAppSecret enables webhook signature verification.
func WithAppSecret(secret string) Option {
	return func(o *Opts) { o.AppSecret = secret }
}

// WithTwilio mounts POST /twilio/webhook.
func WithTwilio(p TwilioParser) Option {
	return func(o *Opts) { o.Twilio = p }
}

func WithMetrics(m *metrics.FunnelMetrics) Option {
	return func(o *Opts) { o.Metrics = m }
}

func WithMetricsHandler(h http.Handler) Option {
	return func(o *Opts) { o.MetricsHandler = h }
}

// Server holds the HTTP routes and their dependencies.
type Server struct {
	handler InboundHandler
	opts    Opts
	router  chi.Router
}

// NewServer builds the router around handler.
func NewServer(handler InboundHandler, options ...Option) *Server {
	opts := Opts{Addr: DefaultServerAddress}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = promhttp.Handler()
	}
	s := &Server{handler: handler, opts: opts}
	s.router = s.routes()
	slog.Debug("api.NewServer", "addr", opts.Addr, "verify_token_set", opts.VerifyToken != "", "app_secret_set", opts.AppSecret != "", "twilio", opts.Twilio != nil)
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", s.opts.MetricsHandler)
	r.Get("/webhook", s.verifyHandler)
	r.Post("/webhook", s.webhookHandler)
	if s.opts.Twilio != nil {
		r.Post("/twilio/webhook", s.twilioWebhookHandler)
	}
	return r
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Vicky API server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
