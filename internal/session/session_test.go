package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/multiservicioscall/mia-agent/internal/agent"
	"github.com/multiservicioscall/mia-agent/internal/normalize"
)

type fakeSink struct {
	mu   sync.Mutex
	said []string
}

func (f *fakeSink) Say(ctx context.Context, text string) error {
	f.mu.Lock()
	f.said = append(f.said, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) utterances() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.said))
	copy(out, f.said)
	return out
}

type fakeBackend struct {
	mu    sync.Mutex
	reply string
	ops   []agent.Operation
}

func (f *fakeBackend) Resolve(ctx context.Context, op agent.Operation) (string, error) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
	return f.reply, nil
}

func (f *fakeBackend) calls() []agent.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agent.Operation, len(f.ops))
	copy(out, f.ops)
	return out
}

func testConfig() Config {
	return Config{
		Feedback: agent.FeedbackSchedule{Initial: time.Second, Processing: time.Second, Patience: time.Second},
		Monitor: agent.MonitorConfig{
			Poll: time.Second, CheckInAfter: time.Minute, Grace: time.Minute,
			LongIdle: time.Hour, MaxWarnings: 1,
		},
		PhraseSeed: 1,
	}
}

func newTestSession(backend agent.Backend) (*Session, *fakeSink) {
	sink := &fakeSink{}
	caller := agent.CallerInfo{ParticipantID: "sip_987654321", PhoneNumber: "+51987654321", SessionID: "room-1"}
	return New(caller, sink, backend, testConfig()), sink
}

func TestQueryKnowledgeBase_ForwardsQuestionAndCaller(t *testing.T) {
	backend := &fakeBackend{reply: "Los precios empiezan en 100 soles."}
	s, _ := newTestSession(backend)

	got := s.QueryKnowledgeBase(context.Background(), "  precio de telemarketing  ")
	if got != backend.reply {
		t.Fatalf("expected backend reply, got %q", got)
	}
	ops := backend.calls()
	if len(ops) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(ops))
	}
	p, ok := ops[0].Payload.(agent.LookupPayload)
	if !ok {
		t.Fatalf("unexpected payload %T", ops[0].Payload)
	}
	if p.Question != "precio de telemarketing" {
		t.Fatalf("question not trimmed: %q", p.Question)
	}
	if p.CallerInfo.SessionID != "room-1" {
		t.Fatalf("caller info not forwarded")
	}
}

func TestScheduleAppointment_InvalidPhoneSkipsBackend(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	s, sink := newTestSession(backend)

	got := s.ScheduleAppointment(context.Background(), ScheduleInput{
		Name: "Ana", Phone: "12345", Date: "mañana", Time: "10:00",
	})
	if !strings.Contains(got, "9 dígitos") {
		t.Fatalf("expected phone validation message, got %q", got)
	}
	if n := len(backend.calls()); n != 0 {
		t.Fatalf("backend must not be called on validation failure, got %d calls", n)
	}
	if n := len(sink.utterances()); n != 0 {
		t.Fatalf("no confirmation should be spoken, got %v", sink.utterances())
	}
}

func TestScheduleAppointment_DayMismatchSkipsBackend(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	s, _ := newTestSession(backend)

	// Pick a weekday reference that cannot match tomorrow.
	tomorrow := time.Now().In(normalize.Lima()).AddDate(0, 0, 1).Weekday()
	wrongRef := "lunes"
	if tomorrow == time.Monday {
		wrongRef = "martes"
	}

	got := s.ScheduleAppointment(context.Background(), ScheduleInput{
		Name: "Ana", Phone: "987654321", Date: "mañana", DayReference: wrongRef, Time: "10:00",
	})
	if !strings.Contains(got, "especifica una fecha válida") {
		t.Fatalf("expected date validation message, got %q", got)
	}
	if n := len(backend.calls()); n != 0 {
		t.Fatalf("backend must not be called on date mismatch")
	}
}

func TestScheduleAppointment_MissingDataListed(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	s, _ := newTestSession(backend)

	got := s.ScheduleAppointment(context.Background(), ScheduleInput{
		Phone: "987654321", Date: "mañana",
	})
	if !strings.Contains(got, "nombre completo") || !strings.Contains(got, "hora") {
		t.Fatalf("expected missing-data message naming fields, got %q", got)
	}
	if n := len(backend.calls()); n != 0 {
		t.Fatalf("backend must not be called with missing data")
	}
}

func TestScheduleAppointment_ConfirmsThenSubmits(t *testing.T) {
	backend := &fakeBackend{reply: "¡Cita agendada!"}
	s, sink := newTestSession(backend)

	got := s.ScheduleAppointment(context.Background(), ScheduleInput{
		Name: "Ana Torres", Phone: "987 654 321", Date: "mañana", Time: "10:00",
	})
	if got != "¡Cita agendada!" {
		t.Fatalf("expected backend reply, got %q", got)
	}

	said := sink.utterances()
	if len(said) == 0 || !strings.HasPrefix(said[0], "Entiendo, quieres una cita para Ana Torres el ") {
		t.Fatalf("expected spoken confirmation first, got %v", said)
	}

	ops := backend.calls()
	if len(ops) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(ops))
	}
	p, ok := ops[0].Payload.(agent.SchedulePayload)
	if !ok {
		t.Fatalf("unexpected payload %T", ops[0].Payload)
	}
	if p.Phone != "+51987654321" {
		t.Fatalf("phone not normalized: %q", p.Phone)
	}
	if p.Reason != defaultScheduleReason {
		t.Fatalf("reason not defaulted: %q", p.Reason)
	}
	if p.Date == "" || p.Time != "10:00" {
		t.Fatalf("payload incomplete: %+v", p)
	}
}

func TestHandleGreetingOrCheck(t *testing.T) {
	s, _ := newTestSession(&fakeBackend{})
	cases := []struct {
		in       string
		wantPart string
	}{
		{"Hola", "Soy Mia"},
		{"buenas tardes", "Soy Mia"},
		{"me escuchas", "estoy aquí"},
		{"qué es esto", "repetir tu consulta"},
	}
	for _, tc := range cases {
		if got := s.HandleGreetingOrCheck(tc.in); !strings.Contains(got, tc.wantPart) {
			t.Fatalf("HandleGreetingOrCheck(%q) = %q, want substring %q", tc.in, got, tc.wantPart)
		}
	}
}

func TestGreetingAndFarewell_ByLimaHour(t *testing.T) {
	lima := normalize.Lima()
	morning := time.Date(2026, 8, 31, 8, 0, 0, 0, lima)
	afternoon := time.Date(2026, 8, 31, 15, 0, 0, 0, lima)
	night := time.Date(2026, 8, 31, 22, 0, 0, 0, lima)

	if Greeting(morning) != "Buenos días" || Greeting(afternoon) != "Buenas tardes" || Greeting(night) != "Buenas noches" {
		t.Fatalf("greeting buckets wrong: %q %q %q", Greeting(morning), Greeting(afternoon), Greeting(night))
	}
	if Farewell(morning) != "Que tenga un buen día" || Farewell(night) != "Que tenga una buena noche" {
		t.Fatalf("farewell buckets wrong")
	}
}

func TestSession_StartSpeaksWelcomeAndClose(t *testing.T) {
	s, sink := newTestSession(&fakeBackend{})
	s.Start(context.Background())
	defer s.Close()

	said := sink.utterances()
	if len(said) != 1 || !strings.Contains(said[0], "bienvenido a Multiservicioscall, soy Mia") {
		t.Fatalf("expected welcome utterance, got %v", said)
	}
}

func TestRegistry_TracksSessions(t *testing.T) {
	r := NewRegistry()
	s, _ := newTestSession(&fakeBackend{})
	r.Add(s)
	if got, ok := r.Get("room-1"); !ok || got != s {
		t.Fatalf("session not registered")
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
	r.Remove("room-1")
	if _, ok := r.Get("room-1"); ok {
		t.Fatalf("session not removed")
	}
}
