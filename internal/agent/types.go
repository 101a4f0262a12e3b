package agent

import (
	"context"
)

// Kind selects the feedback-message pool and impatience-response pool
// for an operation.
type Kind int

const (
	KindNone Kind = iota
	KindLookup
	KindScheduling
)

func (k Kind) String() string {
	switch k {
	case KindLookup:
		return "lookup"
	case KindScheduling:
		return "scheduling"
	default:
		return "none"
	}
}

// Stage identifies a feedback utterance slot in the ticker's ladder.
type Stage string

const (
	StageInitial    Stage = "initial"
	StageProcessing Stage = "processing"
	StagePatience   Stage = "patience"
)

// CallerInfo identifies the caller on the current session.
type CallerInfo struct {
	ParticipantID string `json:"participant_id"`
	PhoneNumber   string `json:"phone_number"`
	SessionID     string `json:"session_id"`
}

// LookupPayload is the knowledge-base query sent to the lookup webhook.
type LookupPayload struct {
	Question   string     `json:"question"`
	CallerInfo CallerInfo `json:"caller_info"`
}

// SchedulePayload is the appointment request sent to the scheduling webhook.
// Phone must already be normalized (+51XXXXXXXXX) and Date formatted DD/MM/YYYY.
type SchedulePayload struct {
	CallerInfo CallerInfo `json:"caller_info"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Reason     string     `json:"reason"`
}

// Operation is one externally-fulfilled request. Construct with
// NewLookupOperation or NewScheduleOperation so Kind always matches the
// payload shape.
type Operation struct {
	Kind    Kind
	Label   string
	Payload any
}

func NewLookupOperation(p LookupPayload) Operation {
	return Operation{Kind: KindLookup, Label: p.Question, Payload: p}
}

func NewScheduleOperation(p SchedulePayload) Operation {
	label := "cita para " + p.Name + " el " + p.Date + " a las " + p.Time
	return Operation{Kind: KindScheduling, Label: label, Payload: p}
}

// SpeechSink plays one utterance to the user. Implementations serialize
// calls per session; Say returns once the utterance has been handed off.
type SpeechSink interface {
	Say(ctx context.Context, text string) error
}

// Backend performs the asynchronous fulfillment call for an operation and
// returns the user-facing answer text. Failures are reported through the
// error taxonomy in errors.go.
type Backend interface {
	Resolve(ctx context.Context, op Operation) (string, error)
}
