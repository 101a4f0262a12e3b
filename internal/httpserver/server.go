// Package httpserver exposes the agent over HTTP: a health probe, the
// Twilio voice webhook that answers with TwiML connecting the call to the
// session socket, and the WebSocket endpoint the dialogue layer dials.
package httpserver

import (
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go/twiml"

	"github.com/multiservicioscall/mia-agent/internal/config"
	mw "github.com/multiservicioscall/mia-agent/internal/middleware"
	"github.com/multiservicioscall/mia-agent/internal/session"
	"github.com/multiservicioscall/mia-agent/internal/speech"
	"github.com/multiservicioscall/mia-agent/internal/transport"
	"github.com/multiservicioscall/mia-agent/internal/webhook"
)

// Server bundles the echo router and the per-call dependencies.
type Server struct {
	Router   *echo.Echo
	registry *session.Registry
}

// New constructs the HTTP server with routes.
func New(cfg config.Config) *Server {
	e := newRouter()

	registry := session.NewRegistry()
	backend := webhook.NewClient(cfg.LookupWebhookURL, cfg.AppointmentURL, cfg.WebhookTimeout)
	ws := transport.NewHandler(registry, backend, session.DefaultConfig(), synthesizer(cfg))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	e.POST("/twilio/voice", handleVoice, mw.TwilioAuth(cfg.TwilioAuthToken))

	e.GET("/session", func(c echo.Context) error {
		ws.ServeWebSocket(c.Response(), c.Request())
		return nil
	})

	return &Server{Router: e, registry: registry}
}

// Sessions reports how many calls are live. Exposed for shutdown logging.
func (s *Server) Sessions() int { return s.registry.Count() }

// handleVoice answers an inbound Twilio call with TwiML that bridges the
// call audio to the session socket on this host.
func handleVoice(c echo.Context) error {
	params, ok := c.Get(mw.TwilioParamsKey).(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}

	callSID := params["CallSid"]
	from := params["From"]
	log.Printf("httpserver: call from %s, CallSid=%s", from, callSID)

	streamURL := fmt.Sprintf("wss://%s/session?session_id=%s&phone=%s",
		c.Request().Host, url.QueryEscape(callSID), url.QueryEscape(from))
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{&twiml.VoiceStream{Url: streamURL}},
	}
	response, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return c.String(http.StatusInternalServerError, "Failed to generate TwiML")
	}
	return c.XMLBlob(http.StatusOK, []byte(response))
}

// synthesizer picks the configured TTS engine; nil keeps sessions text-only.
func synthesizer(cfg config.Config) speech.Synthesizer {
	switch {
	case cfg.ElevenLabsKey != "" && cfg.ElevenLabsVoiceID != "":
		return speech.NewElevenLabs(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	case cfg.DeepgramKey != "":
		return speech.NewDeepgram(cfg.DeepgramKey, cfg.DeepgramModel)
	}
	return nil
}
