package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/Vicky/internal/flow"
	"github.com/BTreeMap/Vicky/internal/intent"
	"github.com/BTreeMap/Vicky/internal/metrics"
	"github.com/BTreeMap/Vicky/internal/models"
	"github.com/BTreeMap/Vicky/internal/store"
)

// DefaultAdvisorNumber receives lead notifications unless overridden.
const DefaultAdvisorNumber = "5216682478005"

// Recipient labels used for send metrics.
const (
	recipientUser    = "user"
	recipientAdvisor = "advisor"
)

// Answerer answers free-form questions from idle senders.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string) (string, error)
}

// Dispatcher routes inbound messages into the funnel and delivers the
// replies and advisor notifications it produces.
type Dispatcher struct {
	svc      Service
	flows    *flow.Manager
	dedup    store.DedupRepo
	advisor  string
	answerer Answerer
	metrics  *metrics.FunnelMetrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAdvisorNumber sets the number lead notifications go to.
func WithAdvisorNumber(number string) DispatcherOption {
	return func(d *Dispatcher) {
		if number != "" {
			d.advisor = number
		}
	}
}

// WithAnswerer enables model answers for unmatched questions.
func WithAnswerer(a Answerer) DispatcherOption {
	return func(d *Dispatcher) { d.answerer = a }
}

func WithMetrics(m *metrics.FunnelMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher. dedup may be nil to disable
// redelivery detection.
func NewDispatcher(svc Service, flows *flow.Manager, dedup store.DedupRepo, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		svc:     svc,
		flows:   flows,
		dedup:   dedup,
		advisor: DefaultAdvisorNumber,
	}
	for _, opt := range opts {
		opt(d)
	}
	slog.Debug("messaging.NewDispatcher", "advisor", d.advisor, "answerer", d.answerer != nil, "dedup", d.dedup != nil)
	return d
}

// HandleInbound processes one inbound message end to end. Send failures do
// not stop later sends; they are joined into the returned error.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg models.InboundMessage) error {
	if err := msg.Validate(); err != nil {
		slog.Warn("Dispatcher.HandleInbound: invalid message", "error", err, "from", msg.From, "id", msg.ID)
		d.metrics.ObserveInbound(string(msg.Type), "invalid")
		return err
	}

	if msg.ID != "" && d.dedup != nil {
		fresh, err := d.dedup.RecordInbound(ctx, msg.ID, msg.From)
		switch {
		case err != nil:
			slog.Error("Dispatcher.HandleInbound: dedup record failed, processing anyway", "error", err, "id", msg.ID)
		case !fresh:
			slog.Info("Dispatcher.HandleInbound: duplicate message ignored", "id", msg.ID, "from", msg.From)
			d.metrics.ObserveInbound(string(msg.Type), "duplicate")
			return nil
		default:
			defer func() {
				if err := d.dedup.MarkProcessed(context.WithoutCancel(ctx), msg.ID); err != nil {
					slog.Warn("Dispatcher.HandleInbound: mark processed failed", "error", err, "id", msg.ID)
				}
			}()
		}
	}

	if !msg.IsText() {
		slog.Debug("Dispatcher.HandleInbound: non-text message", "from", msg.From, "type", msg.Type)
		d.metrics.ObserveInbound(string(msg.Type), "non_text")
		return d.send(ctx, recipientUser, msg.From, flow.TextOnlyNotice)
	}

	turn, err := d.flows.Handle(ctx, msg.From, msg.Body)
	if err != nil {
		slog.Error("Dispatcher.HandleInbound: flow failed", "error", err, "from", msg.From)
		d.metrics.ObserveInbound(string(msg.Type), "error")
		return err
	}
	d.metrics.ObserveInbound(string(msg.Type), "handled")
	d.metrics.ObserveTransition(string(turn.Flow), string(turn.From), string(turn.To))

	replies := turn.Replies
	if turn.Unhandled {
		replies = d.fallback(ctx, msg.Body)
	}

	var errs []error
	for _, reply := range replies {
		if err := d.send(ctx, recipientUser, msg.From, reply); err != nil {
			errs = append(errs, err)
		}
	}
	if turn.Lead != nil {
		d.metrics.ObserveLead(string(turn.Lead.Flow), string(turn.Lead.Outcome))
		if err := d.notifyAdvisor(ctx, *turn.Lead); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fallback answers an idle sender whose text matched nothing.
func (d *Dispatcher) fallback(ctx context.Context, text string) []string {
	if d.answerer != nil && intent.LooksLikeQuestion(text) {
		answer, err := d.answerer.AnswerQuestion(ctx, text)
		if err == nil && strings.TrimSpace(answer) != "" {
			return []string{answer}
		}
		slog.Warn("Dispatcher.fallback: answerer failed, sending menu", "error", err)
	}
	return []string{flow.GreetingText, flow.MenuText}
}

func (d *Dispatcher) notifyAdvisor(ctx context.Context, lead models.Lead) error {
	slog.Info("Dispatcher.notifyAdvisor: forwarding lead", "sender", lead.SenderID, "flow", lead.Flow, "outcome", lead.Outcome)
	if err := d.send(ctx, recipientAdvisor, d.advisor, flow.RenderLead(lead)); err != nil {
		return fmt.Errorf("notify advisor about %s: %w", lead.SenderID, err)
	}
	return nil
}

// send delivers one message; failures are logged and returned, never retried.
func (d *Dispatcher) send(ctx context.Context, recipient, to, body string) error {
	err := d.svc.SendMessage(ctx, to, body)
	d.metrics.ObserveOutbound(recipient, err)
	if err != nil {
		slog.Error("Dispatcher.send: delivery failed", "recipient", recipient, "to", to, "error", err)
	}
	return err
}

// Run feeds the service's Inbound channel into HandleInbound until ctx is
// done or the channel is closed.
func (d *Dispatcher) Run(ctx context.Context) {
	inbound := d.svc.Inbound()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				slog.Info("Dispatcher.Run: inbound channel closed")
				return
			}
			if err := d.HandleInbound(ctx, msg); err != nil {
				slog.Warn("Dispatcher.Run: message handled with errors", "from", msg.From, "error", err)
			}
		}
	}
}
