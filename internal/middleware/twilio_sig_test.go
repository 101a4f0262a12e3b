package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func signRequest(token, fullURL string, form url.Values) string {
	data := fullURL
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func twilioRequest(t *testing.T, token string, sign bool) (*httptest.ResponseRecorder, echo.Context, *echo.Echo) {
	t.Helper()
	e := echo.New()
	form := url.Values{}
	form.Set("From", "+51987654321")
	form.Set("CallSid", "CA123")
	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader(form.Encode()))
	req.Host = "agent.example.com"
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if sign {
		req.Header.Set("X-Twilio-Signature", signRequest(token, "https://agent.example.com/twilio/voice", form))
	}
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec), e
}

func TestTwilioAuth_ValidSignature(t *testing.T) {
	rec, c, _ := twilioRequest(t, "secret", true)
	var caller string
	next := func(c echo.Context) error {
		caller, _ = c.Get(CallerNumberKey).(string)
		return c.String(http.StatusOK, "ok")
	}
	if err := TwilioAuth("secret")(next)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if caller != "+51987654321" {
		t.Fatalf("caller = %q", caller)
	}
}

func TestTwilioAuth_RejectsBadSignature(t *testing.T) {
	rec, c, _ := twilioRequest(t, "wrong-token", true)
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	if err := TwilioAuth("secret")(next)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTwilioAuth_RejectsMissingSignature(t *testing.T) {
	rec, c, _ := twilioRequest(t, "secret", false)
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	if err := TwilioAuth("secret")(next)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTwilioAuth_MissingTokenIsServerError(t *testing.T) {
	rec, c, _ := twilioRequest(t, "secret", true)
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	if err := TwilioAuth("")(next)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestTwilioAuth_SkipsNonTwilioPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	if err := TwilioAuth("secret")(next)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
