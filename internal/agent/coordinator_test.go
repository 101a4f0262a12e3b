package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
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
	delay time.Duration
	reply string
	err   error
	calls int32
}

func (f *fakeBackend) Resolve(ctx context.Context, op Operation) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func inPool(kind Kind, stage Stage, text string) bool {
	for _, p := range feedbackPools[kind][stage] {
		if p == text {
			return true
		}
	}
	return false
}

func newTestCoordinator(sink *fakeSink, backend Backend, sched FeedbackSchedule) (*Coordinator, *OperationState) {
	state := NewOperationState()
	return NewCoordinator(state, sink, backend, NewPhrasebook(1), sched), state
}

func lookupOp(q string) Operation {
	return NewLookupOperation(LookupPayload{Question: q})
}

func TestSubmit_FeedbackLadderThenAnswer(t *testing.T) {
	sink := &fakeSink{}
	backend := &fakeBackend{delay: 150 * time.Millisecond, reply: "respuesta"}
	sched := FeedbackSchedule{Initial: 30 * time.Millisecond, Processing: 60 * time.Millisecond, Patience: 200 * time.Millisecond}
	c, state := newTestCoordinator(sink, backend, sched)

	got := c.Submit(context.Background(), lookupOp("precio"))
	if got != "respuesta" {
		t.Fatalf("expected backend answer, got %q", got)
	}

	said := sink.utterances()
	if len(said) != 2 {
		t.Fatalf("expected exactly 2 feedback utterances, got %d: %v", len(said), said)
	}
	if !inPool(KindLookup, StageInitial, said[0]) {
		t.Fatalf("first utterance not from initial pool: %q", said[0])
	}
	if !inPool(KindLookup, StageProcessing, said[1]) {
		t.Fatalf("second utterance not from processing pool: %q", said[1])
	}
	if state.Active() {
		t.Fatalf("state still active after completion")
	}
	if state.LastCompletedAt().IsZero() {
		t.Fatalf("lastCompletedAt not set")
	}
	if n := len(state.SentStages()); n != 0 {
		t.Fatalf("sentStages not cleared after completion, got %d", n)
	}
}

func TestSubmit_FastCompletionSpeaksNothing(t *testing.T) {
	sink := &fakeSink{}
	backend := &fakeBackend{delay: 20 * time.Millisecond, reply: "ok"}
	sched := FeedbackSchedule{Initial: 60 * time.Millisecond, Processing: 60 * time.Millisecond, Patience: 60 * time.Millisecond}
	c, _ := newTestCoordinator(sink, backend, sched)

	if got := c.Submit(context.Background(), lookupOp("hola")); got != "ok" {
		t.Fatalf("unexpected result %q", got)
	}
	// No stage scheduled after completion may fire late.
	time.Sleep(150 * time.Millisecond)
	if said := sink.utterances(); len(said) != 0 {
		t.Fatalf("expected silence, got %v", said)
	}
}

func TestSubmit_SupersessionJoinsInflight(t *testing.T) {
	sink := &fakeSink{}
	backend := &fakeBackend{delay: 150 * time.Millisecond, reply: "primera respuesta"}
	sched := FeedbackSchedule{Initial: 50 * time.Millisecond, Processing: 200 * time.Millisecond, Patience: 200 * time.Millisecond}
	c, state := newTestCoordinator(sink, backend, sched)

	first := make(chan string, 1)
	go func() { first <- c.Submit(context.Background(), lookupOp("precio")) }()

	time.Sleep(30 * time.Millisecond)
	second := c.Submit(context.Background(), NewScheduleOperation(SchedulePayload{
		Name: "Ana", Phone: "+51987654321", Date: "01/09/2026", Time: "10:00",
	}))

	firstResult := <-first
	if firstResult != "primera respuesta" || second != "primera respuesta" {
		t.Fatalf("both callers must receive the original result, got %q / %q", firstResult, second)
	}
	if n := atomic.LoadInt32(&backend.calls); n != 1 {
		t.Fatalf("expected a single backend call, got %d", n)
	}
	// The replacement ticker runs under the superseding kind.
	for _, said := range sink.utterances() {
		if !inPool(KindScheduling, StageInitial, said) && !inPool(KindScheduling, StageProcessing, said) && !inPool(KindScheduling, StagePatience, said) {
			t.Fatalf("feedback after supersession not from scheduling pools: %q", said)
		}
	}
	if state.Active() {
		t.Fatalf("state still active after completion")
	}
}

func TestSubmit_KindReflectsSupersederDuringOverlap(t *testing.T) {
	sink := &fakeSink{}
	backend := &fakeBackend{delay: 120 * time.Millisecond, reply: "r"}
	c, state := newTestCoordinator(sink, backend, FeedbackSchedule{Initial: time.Second, Processing: time.Second, Patience: time.Second})

	done := make(chan struct{})
	go func() { c.Submit(context.Background(), lookupOp("q1")); close(done) }()
	time.Sleep(30 * time.Millisecond)

	go c.Submit(context.Background(), NewScheduleOperation(SchedulePayload{Name: "Ana"}))
	time.Sleep(30 * time.Millisecond)

	if k := state.Kind(); k != KindScheduling {
		t.Fatalf("expected kind scheduling during overlap, got %s", k)
	}
	<-done
}

func TestSubmit_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"config_missing", ErrConfigMissing, configMissingText[KindLookup]},
		{"timeout", ErrTimeout, timeoutText[KindLookup]},
		{"http_status", &StatusError{Code: 502}, backendErrorText[KindLookup]},
		{"unexpected", errors.New("boom"), unexpectedText[KindLookup]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &fakeSink{}
			backend := &fakeBackend{delay: 10 * time.Millisecond, err: tc.err}
			c, state := newTestCoordinator(sink, backend, DefaultFeedbackSchedule())
			if got := c.Submit(context.Background(), lookupOp("x")); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
			if state.Active() {
				t.Fatalf("teardown must run on failure")
			}
			if state.LastCompletedAt().IsZero() {
				t.Fatalf("lastCompletedAt must be set on failure")
			}
		})
	}
}

func TestSubmit_SchedulingTimeoutTeardown(t *testing.T) {
	sink := &fakeSink{}
	backend := &fakeBackend{delay: 10 * time.Millisecond, err: ErrTimeout}
	sched := FeedbackSchedule{Initial: 40 * time.Millisecond, Processing: 40 * time.Millisecond, Patience: 40 * time.Millisecond}
	c, state := newTestCoordinator(sink, backend, sched)

	got := c.Submit(context.Background(), NewScheduleOperation(SchedulePayload{Name: "Luis"}))
	if got != timeoutText[KindScheduling] {
		t.Fatalf("expected scheduling timeout utterance, got %q", got)
	}
	if state.Active() {
		t.Fatalf("active must be false after timeout")
	}
	// The ticker was cancelled before Submit returned: nothing fires later.
	before := len(sink.utterances())
	time.Sleep(100 * time.Millisecond)
	if after := len(sink.utterances()); after != before {
		t.Fatalf("ticker spoke after teardown: %d -> %d", before, after)
	}
}

func TestSubmit_ManyCallersSingleFlight(t *testing.T) {
	sink := &fakeSink{}
	backend := &fakeBackend{delay: 100 * time.Millisecond, reply: "única"}
	c, _ := newTestCoordinator(sink, backend, FeedbackSchedule{Initial: time.Second, Processing: time.Second, Patience: time.Second})

	const n = 5
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() { results <- c.Submit(context.Background(), lookupOp("q")) }()
		time.Sleep(10 * time.Millisecond)
	}
	for i := 0; i < n; i++ {
		if r := <-results; r != "única" {
			t.Fatalf("caller %d got %q", i, r)
		}
	}
	if calls := atomic.LoadInt32(&backend.calls); calls != 1 {
		t.Fatalf("expected 1 backend call for %d callers, got %d", n, calls)
	}
}
