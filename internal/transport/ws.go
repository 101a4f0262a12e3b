// Package transport exposes a session over a WebSocket. The dialogue layer
// (the voice pipeline terminating the call audio) connects here, streams
// conversation events in, and receives agent utterances back as "say" frames,
// plus raw PCM binary frames when a synthesizer is configured.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/multiservicioscall/mia-agent/internal/agent"
	"github.com/multiservicioscall/mia-agent/internal/normalize"
	"github.com/multiservicioscall/mia-agent/internal/session"
	"github.com/multiservicioscall/mia-agent/internal/speech"
)

// sessionEvent is one inbound frame from the dialogue layer.
// Types: "user_started_speaking", "user_utterance", "agent_utterance",
// "lookup", "schedule", "impatience", "greeting", "bye".
type sessionEvent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// schedule
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Date         string `json:"date,omitempty"`
	DayReference string `json:"day_reference,omitempty"`
	Time         string `json:"time,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// sayFrame is the outbound utterance frame.
type sayFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// The dialogue layer runs on our own infrastructure; restrict in production
		return true
	},
}

// Handler upgrades session connections and runs one Session per connection.
type Handler struct {
	registry *session.Registry
	backend  agent.Backend
	cfg      session.Config
	synth    speech.Synthesizer // nil means text-only frames
}

func NewHandler(registry *session.Registry, backend agent.Backend, cfg session.Config, synth speech.Synthesizer) *Handler {
	return &Handler{registry: registry, backend: backend, cfg: cfg, synth: synth}
}

// ServeWebSocket upgrades to WebSocket, builds the per-call session and
// pumps events until the peer says bye or disconnects.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("transport: ws upgrade error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	caller := callerFromRequest(r)
	sink := newConnSink(conn, h.synth)
	sess := session.New(caller, sink, h.backend, h.cfg)
	h.registry.Add(sess)
	defer h.registry.Remove(caller.SessionID)

	ctx, cancel := context.WithCancel(r.Context())
	sess.Start(ctx)
	defer sess.Close()

	// Teardown order matters: cancel first so in-flight backend calls abort,
	// then wait for their goroutines, then close the session.
	var pending sync.WaitGroup
	defer pending.Wait()
	defer cancel()

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			log.Printf("transport [%s]: read: %v", caller.SessionID, rerr)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ev sessionEvent
		if json.Unmarshal(data, &ev) != nil {
			continue
		}
		if !h.dispatch(ctx, sess, sink, &pending, ev) {
			return
		}
	}
}

// dispatch routes one event. Returns false when the connection should close.
func (h *Handler) dispatch(ctx context.Context, sess *session.Session, sink *connSink, pending *sync.WaitGroup, ev sessionEvent) bool {
	id := sess.Caller().SessionID
	switch strings.ToLower(ev.Type) {
	case "user_started_speaking", "user_utterance":
		sess.OnUserActivity()
	case "agent_utterance":
		sess.OnAgentResponse()
	case "lookup":
		// Resolved off the read loop so a follow-up lookup can supersede it.
		pending.Add(1)
		go func() {
			defer pending.Done()
			h.speak(ctx, sess, sink, sess.QueryKnowledgeBase(ctx, ev.Text))
		}()
	case "schedule":
		in := session.ScheduleInput{
			Name:         ev.Name,
			Phone:        ev.Phone,
			Date:         ev.Date,
			DayReference: ev.DayReference,
			Time:         ev.Time,
			Reason:       ev.Reason,
		}
		pending.Add(1)
		go func() {
			defer pending.Done()
			h.speak(ctx, sess, sink, sess.ScheduleAppointment(ctx, in))
		}()
	case "impatience":
		h.speak(ctx, sess, sink, sess.HandleImpatience())
	case "greeting":
		h.speak(ctx, sess, sink, sess.HandleGreetingOrCheck(ev.Text))
	case "bye":
		h.speak(ctx, sess, sink, sess.FarewellMessage())
		return false
	default:
		log.Printf("transport [%s]: unknown event %q", id, ev.Type)
	}
	return true
}

func (h *Handler) speak(ctx context.Context, sess *session.Session, sink *connSink, text string) {
	if text == "" {
		return
	}
	if err := sink.Say(ctx, text); err != nil {
		log.Printf("transport [%s]: say: %v", sess.Caller().SessionID, err)
		return
	}
	sess.OnAgentResponse()
}

func callerFromRequest(r *http.Request) agent.CallerInfo {
	q := r.URL.Query()
	id := q.Get("session_id")
	if id == "" {
		// Two connects in the same millisecond must not share an ID, or one
		// registry removal would evict the other session.
		id = fmt.Sprintf("%s-%08x", time.Now().Format("0102150405.000"), rand.Uint32())
	}
	participant := q.Get("participant")
	phone := q.Get("phone")
	if phone == "" {
		phone = normalize.PhoneFromIdentity(participant)
	}
	return agent.CallerInfo{
		SessionID:     id,
		ParticipantID: participant,
		PhoneNumber:   phone,
	}
}

// connSink speaks through the WebSocket: every utterance goes out as a
// "say" text frame and, when a synthesizer is configured, as PCM binary
// frames behind it. gorilla allows one concurrent writer, so all frame
// writes share one mutex.
type connSink struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	queue *speech.Queue
}

func newConnSink(conn *websocket.Conn, synth speech.Synthesizer) *connSink {
	s := &connSink{conn: conn}
	if synth != nil {
		s.queue = speech.NewQueue(synth, (*connAudio)(s))
	}
	return s
}

func (s *connSink) Say(ctx context.Context, text string) error {
	s.mu.Lock()
	err := s.conn.WriteJSON(sayFrame{Type: "say", Text: text})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.queue != nil {
		return s.queue.Say(ctx, text)
	}
	return nil
}

// connAudio adapts the sink's connection into a speech.AudioSink.
type connAudio connSink

func (a *connAudio) WritePCM(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		log.Printf("transport: write pcm: %v", err)
	}
}

func (a *connAudio) FlushTail() {
	a.mu.Lock()
	defer a.mu.Unlock()
	// Empty binary frame marks end of one utterance's audio.
	if err := a.conn.WriteMessage(websocket.BinaryMessage, nil); err != nil {
		log.Printf("transport: flush tail: %v", err)
	}
}
