package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/Vicky/internal/intent"
	"github.com/BTreeMap/Vicky/internal/models"
	"github.com/BTreeMap/Vicky/internal/store"
)

// Turn is everything one inbound text produced.
type Turn struct {
	Replies []string
	// Lead is set when the advisor must be notified.
	Lead *models.Lead
	// Unhandled means the sender is idle and nothing matched; the caller
	// decides between a model answer and the greeting.
	Unhandled bool
	Command   intent.Command
	Flow      models.FlowType
	From      models.StateType
	To        models.StateType
}

// Manager routes a sender's text through commands, the active funnel and the
// idle entry points. Turns for the same sender are applied one at a time.
type Manager struct {
	store   store.SessionStore
	machine *Machine
	locks   *keyedMutex
	now     func() time.Time
}

// NewManager creates a Manager over st.
func NewManager(st store.SessionStore, cfg Config) *Manager {
	slog.Debug("flow.NewManager", "min_pension", cfg.MinPension, "min_loan", cfg.MinLoan, "collect_contact", cfg.CollectContact)
	return &Manager{
		store:   st,
		machine: NewMachine(cfg),
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Handle applies text from senderID and persists the resulting session.
// Turns for one sender never overlap: within the process through a keyed
// mutex, and across processes when the store is a store.SenderLocker.
func (m *Manager) Handle(ctx context.Context, senderID, text string) (Turn, error) {
	unlock := m.locks.Lock(senderID)
	defer unlock()
	if locker, ok := m.store.(store.SenderLocker); ok {
		release, err := locker.LockSender(ctx, senderID)
		if err != nil {
			return Turn{}, err
		}
		defer release()
	}

	sess, err := m.store.GetSession(ctx, senderID)
	if err != nil {
		return Turn{}, fmt.Errorf("load session for %s: %w", senderID, err)
	}
	turn := Turn{From: models.StateIdle, To: models.StateIdle}
	if sess != nil {
		turn.From = sess.State
		turn.Flow = sess.Flow
	}

	switch cmd := intent.DetectCommand(text); cmd {
	case intent.CommandMenu:
		turn.Command = cmd
		turn.Replies = []string{MenuText}
		return turn, m.clear(ctx, sess)
	case intent.CommandGreeting:
		turn.Command = cmd
		turn.Replies = []string{GreetingText, MenuText}
		return turn, m.clear(ctx, sess)
	}

	if sess != nil {
		step, ok := m.machine.Step(*sess, text)
		if ok {
			return m.apply(ctx, turn, senderID, step)
		}
		slog.Warn("Manager.Handle: session in unknown state, clearing", "sender", senderID, "state", sess.State)
		if err := m.clear(ctx, sess); err != nil {
			return turn, err
		}
		turn.From = models.StateIdle
		turn.Flow = ""
	}
	return m.idle(ctx, turn, senderID, text)
}

func (m *Manager) apply(ctx context.Context, turn Turn, senderID string, step Step) (Turn, error) {
	turn.Replies = step.Replies
	now := m.now()
	if step.Next != nil {
		next := *step.Next
		next.UpdatedAt = now
		if err := m.store.SaveSession(ctx, next); err != nil {
			return turn, fmt.Errorf("save session for %s: %w", senderID, err)
		}
		turn.To = next.State
	} else {
		if err := m.store.DeleteSession(ctx, senderID); err != nil {
			return turn, fmt.Errorf("clear session for %s: %w", senderID, err)
		}
		turn.To = models.StateIdle
	}
	if step.Outcome != "" && step.Final != nil {
		lead := models.NewLead(*step.Final, step.Outcome, now)
		turn.Lead = &lead
		slog.Info("Manager: lead ready", "sender", lead.SenderID, "flow", lead.Flow, "outcome", lead.Outcome)
	}
	return turn, nil
}

func (m *Manager) idle(ctx context.Context, turn Turn, senderID, text string) (Turn, error) {
	choice := intent.MenuChoice(text)
	switch {
	case intent.IsLoanRequest(text) || choice == ServiceIMSSLoan:
		return m.start(ctx, turn, models.FlowTypeIMSSLoan, senderID)
	case intent.IsBusinessRequest(text) || choice == ServiceBusiness:
		return m.start(ctx, turn, models.FlowTypeBusinessCredit, senderID)
	case choice >= ServiceAutoInsurance && choice <= ServiceMedicalCards:
		return m.contactRequest(turn, senderID, ServiceName(choice)), nil
	case intent.IsAdvisorRequest(text):
		return m.contactRequest(turn, senderID, GeneralAdvice), nil
	default:
		turn.Unhandled = true
		return turn, nil
	}
}

func (m *Manager) start(ctx context.Context, turn Turn, flow models.FlowType, senderID string) (Turn, error) {
	sess, replies := m.machine.Start(flow, senderID)
	now := m.now()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return turn, fmt.Errorf("start %s session for %s: %w", flow, senderID, err)
	}
	slog.Info("Manager: funnel started", "sender", senderID, "flow", sess.Flow)
	turn.Flow = sess.Flow
	turn.To = sess.State
	turn.Replies = replies
	return turn, nil
}

func (m *Manager) contactRequest(turn Turn, senderID, service string) Turn {
	lead := models.Lead{
		SenderID:  senderID,
		Outcome:   models.LeadOutcomeContactRequest,
		Service:   service,
		CreatedAt: m.now(),
	}
	turn.Lead = &lead
	turn.Replies = []string{ContactRequestText(service)}
	return turn
}

func (m *Manager) clear(ctx context.Context, sess *models.Session) error {
	if sess == nil {
		return nil
	}
	if err := m.store.DeleteSession(ctx, sess.SenderID); err != nil {
		return fmt.Errorf("clear session for %s: %w", sess.SenderID, err)
	}
	return nil
}
