// Package session wires the concurrency core for one phone conversation:
// an operation coordinator, an idle-silence monitor and a speech sink bound
// to a single caller. The dialogue layer drives it through the tool surface
// (QueryKnowledgeBase, ScheduleAppointment, HandleImpatience, ...).
package session

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/multiservicioscall/mia-agent/internal/agent"
	"github.com/multiservicioscall/mia-agent/internal/normalize"
)

const defaultScheduleReason = "Cita con gerente comercial"

// Config carries the per-session timing knobs. Tests shrink them.
type Config struct {
	Feedback   agent.FeedbackSchedule
	Monitor    agent.MonitorConfig
	PhraseSeed int64
}

func DefaultConfig() Config {
	return Config{
		Feedback:   agent.DefaultFeedbackSchedule(),
		Monitor:    agent.DefaultMonitorConfig(),
		PhraseSeed: time.Now().UnixNano(),
	}
}

// Session owns all per-conversation state. One instance per call; never
// shared across calls.
type Session struct {
	caller   agent.CallerInfo
	state    *agent.OperationState
	activity *agent.ConversationActivity
	coord    *agent.Coordinator
	monitor  *agent.Monitor
	sink     agent.SpeechSink
}

func New(caller agent.CallerInfo, sink agent.SpeechSink, backend agent.Backend, cfg Config) *Session {
	state := agent.NewOperationState()
	activity := agent.NewConversationActivity(time.Now())
	return &Session{
		caller:   caller,
		state:    state,
		activity: activity,
		coord:    agent.NewCoordinator(state, sink, backend, agent.NewPhrasebook(cfg.PhraseSeed), cfg.Feedback),
		monitor:  agent.NewMonitor(state, activity, sink, cfg.Monitor),
		sink:     sink,
	}
}

func (s *Session) Caller() agent.CallerInfo { return s.caller }

// Start greets the caller and begins silence monitoring.
func (s *Session) Start(ctx context.Context) {
	log.Printf("session %s: started for %s", s.caller.SessionID, s.caller.ParticipantID)
	welcome := Greeting(time.Now()) + ", bienvenido a Multiservicioscall, soy Mia. ¿Cómo puedo ayudarte?"
	if err := s.sink.Say(ctx, welcome); err != nil {
		log.Printf("session %s: welcome failed: %v", s.caller.SessionID, err)
	}
	s.OnAgentResponse()
	s.monitor.Start(ctx)
}

// Close stops the monitor and resets operation state. Idempotent enough for
// a single deferred call per connection.
func (s *Session) Close() {
	s.monitor.Stop()
	s.state.Reset()
	log.Printf("session %s: closed", s.caller.SessionID)
}

// OnUserActivity ingests user speech events from the transport.
func (s *Session) OnUserActivity() { s.activity.TouchUser(time.Now()) }

// OnAgentResponse ingests committed agent utterances from the transport.
func (s *Session) OnAgentResponse() { s.activity.TouchAgent(time.Now()) }

// QueryKnowledgeBase resolves a caller question through the lookup webhook.
// Always returns an utterance to speak.
func (s *Session) QueryKnowledgeBase(ctx context.Context, question string) string {
	question = strings.TrimSpace(question)
	return s.coord.Submit(ctx, agent.NewLookupOperation(agent.LookupPayload{
		Question:   question,
		CallerInfo: s.caller,
	}))
}

// ScheduleInput is the raw appointment request as collected by the dialogue
// layer. Phone and Date are unvalidated caller speech.
type ScheduleInput struct {
	Name         string
	Phone        string
	Date         string
	DayReference string
	Time         string
	Reason       string
}

// ScheduleAppointment validates the request, confirms it aloud and submits
// it to the scheduling webhook. Validation failures short-circuit before any
// backend call and return the corrective utterance.
func (s *Session) ScheduleAppointment(ctx context.Context, in ScheduleInput) string {
	phone, err := normalize.Phone(in.Phone)
	if err != nil {
		log.Printf("session %s: invalid phone %q", s.caller.SessionID, in.Phone)
		return err.Error()
	}
	date, err := normalize.Date(in.Date, in.DayReference, time.Now())
	if err != nil {
		log.Printf("session %s: invalid date %q", s.caller.SessionID, in.Date)
		return err.Error()
	}
	if msg := missingScheduleData(in.Name, in.Time); msg != "" {
		return msg
	}

	confirmation := "Entiendo, quieres una cita para " + in.Name + " el " + date + " a las " + in.Time + ". ¿Es correcto?"
	if err := s.sink.Say(ctx, confirmation); err != nil {
		log.Printf("session %s: confirmation failed: %v", s.caller.SessionID, err)
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = defaultScheduleReason
	}
	return s.coord.Submit(ctx, agent.NewScheduleOperation(agent.SchedulePayload{
		CallerInfo: s.caller,
		Name:       strings.TrimSpace(in.Name),
		Phone:      phone,
		Date:       date,
		Time:       strings.TrimSpace(in.Time),
		Reason:     reason,
	}))
}

func missingScheduleData(name, hour string) string {
	var missing []string
	if strings.TrimSpace(name) == "" {
		missing = append(missing, "nombre completo")
	}
	if strings.TrimSpace(hour) == "" {
		missing = append(missing, "hora")
	}
	if len(missing) == 0 {
		return ""
	}
	return "Por favor, proporciona los siguientes datos para agendar la cita: " + strings.Join(missing, ", ") + "."
}

// HandleImpatience answers a caller asking about delays, keyed by how long
// the current operation has been running.
func (s *Session) HandleImpatience() string {
	return s.state.ImpatienceReply(time.Now())
}

var greetingWords = []string{"hola", "hello", "buenas", "buenos dias", "buenas tardes", "buenas noches"}
var connectionChecks = []string{"¿hola?", "hola?", "estás ahí", "estas ahi", "me escuchas", "sí, es ahí", "si, es ahi"}

// HandleGreetingOrCheck answers greetings and "are you there?" checks
// immediately, without touching the coordinator.
func (s *Session) HandleGreetingOrCheck(userMessage string) string {
	m := strings.ToLower(strings.TrimSpace(userMessage))
	for _, g := range greetingWords {
		if strings.Contains(m, g) {
			return "¡Hola! Soy Mia de Multiservicioscall. ¿En qué puedo ayudarte?"
		}
	}
	for _, c := range connectionChecks {
		if strings.Contains(m, c) {
			return "Sí, estoy aquí y te escucho perfectamente. ¿Cómo puedo asistirte?"
		}
	}
	return "Te escucho. ¿Podrías repetir tu consulta para ayudarte mejor?"
}

// FarewellMessage returns the hour-appropriate goodbye.
func (s *Session) FarewellMessage() string {
	return Farewell(time.Now()) + ". Gracias por contactar a Multiservicioscall."
}
