package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress       string
	LookupWebhookURL  string
	AppointmentURL    string
	WebhookTimeout    time.Duration
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string
	DeepgramModel     string
	TwilioAuthToken   string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	lookupURL := os.Getenv("N8N_RAG_WEBHOOK_URL")
	if lookupURL == "" {
		log.Println("Warning: N8N_RAG_WEBHOOK_URL not set - knowledge lookups will not work")
	}
	appointmentURL := os.Getenv("N8N_APPOINTMENT_WEBHOOK_URL")
	if appointmentURL == "" {
		log.Println("Warning: N8N_APPOINTMENT_WEBHOOK_URL not set - scheduling will not work")
	}

	timeout := 15 * time.Second
	if raw := os.Getenv("WEBHOOK_TIMEOUT_SECONDS"); raw != "" {
		if secs, perr := strconv.Atoi(raw); perr == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		} else {
			log.Printf("Warning: WEBHOOK_TIMEOUT_SECONDS=%q is not a positive integer, using %s", raw, timeout)
		}
	}

	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if elevenKey == "" && deepgramKey == "" {
		log.Println("Warning: no TTS key set (ELEVENLABS_API_KEY or DEEPGRAM_API_KEY) - sessions run text-only")
	}
	deepgramModel := os.Getenv("DEEPGRAM_TTS_MODEL")
	if deepgramModel == "" {
		deepgramModel = "aura-2-celeste-es"
	}

	twilioToken := os.Getenv("TWILIO_AUTH_TOKEN")
	if twilioToken == "" {
		log.Println("Warning: TWILIO_AUTH_TOKEN not set - Twilio signature validation disabled")
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:       addr,
		LookupWebhookURL:  lookupURL,
		AppointmentURL:    appointmentURL,
		WebhookTimeout:    timeout,
		ElevenLabsKey:     elevenKey,
		ElevenLabsVoiceID: voiceID,
		DeepgramKey:       deepgramKey,
		DeepgramModel:     deepgramModel,
		TwilioAuthToken:   twilioToken,
	}
}
