package agent

import (
	"sync"
	"time"
)

// OperationState tracks the single in-flight operation for one session.
// One instance per session; never shared across sessions. All access goes
// through the mutex so the coordinator, the feedback ticker and the
// idle-silence monitor can read it concurrently.
type OperationState struct {
	mu              sync.Mutex
	active          bool
	kind            Kind
	query           Operation
	startedAt       time.Time
	lastCompletedAt time.Time
	sentStages      []Stage
}

func NewOperationState() *OperationState { return &OperationState{} }

// begin marks the start of a new operation and clears the stage record.
func (s *OperationState) begin(op Operation, now time.Time) {
	s.mu.Lock()
	s.active = true
	s.kind = op.Kind
	s.query = op
	s.startedAt = now
	s.sentStages = nil
	s.mu.Unlock()
}

// supersede overwrites kind and query while the current operation stays in
// flight. The backend call is not restarted; only the spoken feedback follows
// the newer request.
func (s *OperationState) supersede(op Operation) {
	s.mu.Lock()
	s.kind = op.Kind
	s.query = op
	s.mu.Unlock()
}

// finish resets to idle and records the completion instant. Runs exactly once
// per operation, on every exit path of the coordinator.
func (s *OperationState) finish(now time.Time) {
	s.mu.Lock()
	s.active = false
	s.kind = KindNone
	s.query = Operation{}
	s.startedAt = time.Time{}
	s.sentStages = nil
	s.lastCompletedAt = now
	s.mu.Unlock()
}

func (s *OperationState) recordStage(st Stage) {
	s.mu.Lock()
	if s.active {
		s.sentStages = append(s.sentStages, st)
	}
	s.mu.Unlock()
}

// Active reports whether an operation is currently being fulfilled.
func (s *OperationState) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Kind returns the kind of the most recently requested operation.
func (s *OperationState) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// StartedAt returns the start instant of the in-flight operation, or the
// zero time when idle.
func (s *OperationState) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// LastCompletedAt returns the completion instant of the previous operation.
// Zero until the first operation completes.
func (s *OperationState) LastCompletedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCompletedAt
}

// SentStages returns a copy of the feedback stages spoken for the in-flight
// operation.
func (s *OperationState) SentStages() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stage, len(s.sentStages))
	copy(out, s.sentStages)
	return out
}

// Reset returns the state to the idle shape. Used at session teardown.
func (s *OperationState) Reset() {
	s.mu.Lock()
	s.active = false
	s.kind = KindNone
	s.query = Operation{}
	s.startedAt = time.Time{}
	s.sentStages = nil
	s.mu.Unlock()
}

// ConversationActivity tracks user/agent activity timestamps for one session.
// Fed by transport events and read by the idle-silence monitor.
type ConversationActivity struct {
	mu           sync.Mutex
	lastUser     time.Time
	lastAgent    time.Time
	warningsSent int
}

func NewConversationActivity(now time.Time) *ConversationActivity {
	return &ConversationActivity{lastUser: now}
}

// TouchUser records user activity. Any user activity returns the monitor to
// its base state regardless of warnings already sent.
func (a *ConversationActivity) TouchUser(now time.Time) {
	a.mu.Lock()
	a.lastUser = now
	a.warningsSent = 0
	a.mu.Unlock()
}

// TouchAgent records that the agent finished speaking a response.
func (a *ConversationActivity) TouchAgent(now time.Time) {
	a.mu.Lock()
	a.lastAgent = now
	a.mu.Unlock()
}

func (a *ConversationActivity) silenceFor(now time.Time) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Sub(a.lastUser)
}

func (a *ConversationActivity) warnings() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.warningsSent
}

// noteWarning counts a spoken check-in and restarts the silence window so
// the threshold must fully re-elapse before the next one.
func (a *ConversationActivity) noteWarning(now time.Time) {
	a.mu.Lock()
	a.warningsSent++
	a.lastUser = now
	a.mu.Unlock()
}

// passiveReset clears warnings after a long idle period without speaking.
func (a *ConversationActivity) passiveReset(now time.Time) {
	a.mu.Lock()
	a.warningsSent = 0
	a.lastUser = now
	a.mu.Unlock()
}
