// Package webhook implements the backend client for the n8n fulfillment
// webhooks: knowledge-base lookups and appointment scheduling.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/multiservicioscall/mia-agent/internal/agent"
)

const noAnswerText = "No encontré una respuesta clara a tu consulta."

// Client posts operation payloads to the configured n8n webhooks. An empty
// URL for the requested operation is reported as agent.ErrConfigMissing:
// fatal for that request only.
type Client struct {
	HTTPClient  *http.Client
	LookupURL   string
	ScheduleURL string
	Timeout     time.Duration
}

func NewClient(lookupURL, scheduleURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		HTTPClient:  &http.Client{},
		LookupURL:   lookupURL,
		ScheduleURL: scheduleURL,
		Timeout:     timeout,
	}
}

// Resolve implements agent.Backend.
func (c *Client) Resolve(ctx context.Context, op agent.Operation) (string, error) {
	switch p := op.Payload.(type) {
	case agent.LookupPayload:
		return c.Lookup(ctx, p)
	case agent.SchedulePayload:
		return c.Schedule(ctx, p)
	default:
		return "", fmt.Errorf("webhook: unsupported payload %T", op.Payload)
	}
}

// Lookup queries the knowledge-base webhook and returns the answer text.
func (c *Client) Lookup(ctx context.Context, p agent.LookupPayload) (string, error) {
	data, err := c.post(ctx, c.LookupURL, p)
	if err != nil {
		return "", err
	}
	answer, _ := data["answer"].(string)
	if answer == "" {
		return noAnswerText, nil
	}
	return cleanAnswer(answer), nil
}

// Schedule posts the appointment request and maps the webhook status to a
// spoken confirmation or refusal.
func (c *Client) Schedule(ctx context.Context, p agent.SchedulePayload) (string, error) {
	data, err := c.post(ctx, c.ScheduleURL, p)
	if err != nil {
		return "", err
	}
	if status, _ := data["status"].(string); status == "success" {
		return fmt.Sprintf("¡Cita agendada exitosamente para %s el %s a las %s! Recibirás una confirmación pronto. ¿En qué más puedo ayudarte?", p.Name, p.Date, p.Time), nil
	}
	return fmt.Sprintf("Lo siento, no se pudo agendar la cita para %s. ¿Podrías intentar con otra fecha u hora?", p.Name), nil
}

func (c *Client) post(ctx context.Context, url string, payload any) (map[string]any, error) {
	if url == "" {
		return nil, agent.ErrConfigMissing
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("webhook: posting payload to %s", url)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, agent.ErrTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &agent.StatusError{Code: resp.StatusCode}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("webhook: decode response: %w", err)
	}
	return data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// cleanAnswer strips markdown emphasis and emoji that read poorly over voice.
func cleanAnswer(s string) string {
	r := strings.NewReplacer("**", "", "*", "", "📞", "")
	return strings.TrimSpace(r.Replace(s))
}
