package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/Vicky/internal/flow"
	"github.com/BTreeMap/Vicky/internal/metrics"
	"github.com/BTreeMap/Vicky/internal/models"
	"github.com/BTreeMap/Vicky/internal/store"
	"github.com/BTreeMap/Vicky/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	testSender  = "5216680000000"
	testAdvisor = "5216689999999"
)

type stubAnswerer struct {
	answer string
	err    error
	calls  int
}

func (a *stubAnswerer) AnswerQuestion(ctx context.Context, question string) (string, error) {
	a.calls++
	return a.answer, a.err
}

func newTestDispatcher(t *testing.T, opts ...DispatcherOption) (*Dispatcher, *testutil.RecordingService) {
	t.Helper()
	svc := testutil.NewRecordingService()
	st := store.NewInMemoryStore(time.Hour)
	opts = append([]DispatcherOption{
		WithAdvisorNumber(testAdvisor),
		WithMetrics(metrics.NewFunnelMetrics(prometheus.NewRegistry())),
	}, opts...)
	return NewDispatcher(svc, flow.NewManager(st, flow.DefaultConfig()), st, opts...), svc
}

func text(id, body string) models.InboundMessage {
	return models.InboundMessage{ID: id, From: testSender, Type: models.MessageTypeText, Body: body, Time: 1}
}

func TestDispatcherIMSSFunnelNotifiesAdvisor(t *testing.T) {
	d, svc := newTestDispatcher(t)
	ctx := context.Background()

	for i, body := range []string{"Quiero un préstamo", "sí", "8,500", "$60,000", "si"} {
		if err := d.HandleInbound(ctx, text(string(rune('a'+i)), body)); err != nil {
			t.Fatalf("HandleInbound(%q): %v", body, err)
		}
	}

	advisor := svc.BodiesTo(testAdvisor)
	if len(advisor) != 1 {
		t.Fatalf("expected exactly one advisor notification, got %d", len(advisor))
	}
	for _, want := range []string{testSender, "$8,500", "$60,000", "Acepta"} {
		if !strings.Contains(advisor[0], want) {
			t.Errorf("advisor notification missing %q:\n%s", want, advisor[0])
		}
	}
	if len(svc.BodiesTo(testSender)) < 5 {
		t.Errorf("user should have received a reply per turn, got %v", svc.BodiesTo(testSender))
	}
}

func TestDispatcherDropsDuplicates(t *testing.T) {
	d, svc := newTestDispatcher(t)
	ctx := context.Background()

	msg := text("wamid.1", "préstamo")
	if err := d.HandleInbound(ctx, msg); err != nil {
		t.Fatal(err)
	}
	first := len(svc.Sent())
	if err := d.HandleInbound(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if len(svc.Sent()) != first {
		t.Errorf("redelivered message produced %d extra sends", len(svc.Sent())-first)
	}
}

func TestDispatcherNonText(t *testing.T) {
	d, svc := newTestDispatcher(t)
	msg := models.InboundMessage{ID: "img", From: testSender, Type: models.MessageTypeImage}
	if err := d.HandleInbound(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if got := svc.BodiesTo(testSender); len(got) != 1 || got[0] != flow.TextOnlyNotice {
		t.Errorf("expected text-only notice, got %v", got)
	}
}

func TestDispatcherInvalidMessage(t *testing.T) {
	d, svc := newTestDispatcher(t)
	err := d.HandleInbound(context.Background(), models.InboundMessage{Type: models.MessageTypeText, Body: "hola"})
	if !errors.Is(err, models.ErrEmptySender) {
		t.Errorf("expected ErrEmptySender, got %v", err)
	}
	if len(svc.Sent()) != 0 {
		t.Error("invalid messages must not produce sends")
	}
}

func TestDispatcherFallback(t *testing.T) {
	greeting := []string{flow.GreetingText, flow.MenuText}
	tests := []struct {
		name      string
		answerer  *stubAnswerer
		body      string
		want      []string
		wantCalls int
	}{
		{"no answerer", nil, "¿Qué documentos necesito?", greeting, 0},
		{"question answered", &stubAnswerer{answer: "INE y estado de cuenta."}, "¿Qué documentos necesito?", []string{"INE y estado de cuenta."}, 1},
		{"answerer fails", &stubAnswerer{err: errors.New("quota")}, "¿Qué documentos necesito?", greeting, 1},
		{"not a question", &stubAnswerer{answer: "x"}, "gracias", greeting, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []DispatcherOption
			if tt.answerer != nil {
				opts = append(opts, WithAnswerer(tt.answerer))
			}
			d, svc := newTestDispatcher(t, opts...)
			if err := d.HandleInbound(context.Background(), text("", tt.body)); err != nil {
				t.Fatal(err)
			}
			got := svc.BodiesTo(testSender)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("replies = %q, want %q", got, tt.want)
			}
			if tt.answerer != nil && tt.answerer.calls != tt.wantCalls {
				t.Errorf("answerer calls = %d, want %d", tt.answerer.calls, tt.wantCalls)
			}
		})
	}
}

func TestDispatcherSendFailureStillNotifiesAdvisor(t *testing.T) {
	d, svc := newTestDispatcher(t)
	ctx := context.Background()

	svc.FailSendsTo(testSender, errors.New("user unreachable"))
	err := d.HandleInbound(ctx, text("", "asesor"))
	if err == nil {
		t.Fatal("expected the failed user send to be reported")
	}
	if got := svc.BodiesTo(testAdvisor); len(got) != 1 || !strings.Contains(got[0], "Solicitud de contacto") {
		t.Errorf("advisor should still be notified, got %v", got)
	}
}

func TestDispatcherAdvisorFailureIsReported(t *testing.T) {
	d, svc := newTestDispatcher(t)
	svc.FailSendsTo(testAdvisor, errors.New("advisor unreachable"))

	err := d.HandleInbound(context.Background(), text("", "3"))
	if err == nil || !strings.Contains(err.Error(), "notify advisor") {
		t.Errorf("expected advisor error, got %v", err)
	}
	if len(svc.BodiesTo(testSender)) != 1 {
		t.Error("user acknowledgement should have been sent")
	}
}

func TestDispatcherDefaultAdvisor(t *testing.T) {
	svc := testutil.NewRecordingService()
	st := store.NewInMemoryStore(time.Hour)
	d := NewDispatcher(svc, flow.NewManager(st, flow.DefaultConfig()), nil, WithAdvisorNumber(""))
	if d.advisor != DefaultAdvisorNumber {
		t.Errorf("advisor = %q, want default", d.advisor)
	}
	if err := d.HandleInbound(context.Background(), text("x", "hablar con asesor")); err != nil {
		t.Fatal(err)
	}
	if len(svc.BodiesTo(DefaultAdvisorNumber)) != 1 {
		t.Error("lead should go to the default advisor")
	}
}

func TestDispatcherRun(t *testing.T) {
	d, svc := newTestDispatcher(t)
	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	svc.Emit(text("r1", "menu"))
	_ = svc.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the inbound channel closed")
	}
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
