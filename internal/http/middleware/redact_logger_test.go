package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactor_Scrub(t *testing.T) {
	r := newRedactor(RedactOptions{})
	cases := []struct{ in, want string }{
		{"", ""},
		{"ana@coony.test", "[REDACTED:email]"},
		{"ligue 11 98765-4321", "ligue [REDACTED:phone]"},
		{"id=123e4567-e89b-12d3-a456-426614174000", "id=[REDACTED:id]"},
		{"nada aqui", "nada aqui"},
	}
	for _, tc := range cases {
		if got := r.scrub(tc.in); got != tc.want {
			t.Fatalf("scrub(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactor_RawQuery(t *testing.T) {
	r := newRedactor(RedactOptions{MaskQuery: []string{"secret"}})

	got := r.rawQuery("token=eyJhbGciOi.abc.def&q=bruno&secret=x&email=ana%40coony.test")
	if strings.Contains(got, "eyJhbGciOi") || !strings.Contains(got, "token=[REDACTED]") {
		t.Fatalf("session token leaked: %q", got)
	}
	if !strings.Contains(got, "secret=[REDACTED]") || !strings.Contains(got, "q=bruno") {
		t.Fatalf("unexpected query: %q", got)
	}
	if r.rawQuery("") != "" {
		t.Fatalf("empty query must stay empty")
	}
}

func TestRedactor_Header(t *testing.T) {
	r := newRedactor(RedactOptions{MaskHeaders: []string{" X-Api-Key "}})
	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("Cookie", "coony_session=abc")
	h.Set("X-Api-Key", "k")
	h.Set("X-Contact", "ana@coony.test")
	h.Add("Accept", "application/json")
	h.Add("Accept", "text/plain")

	got := r.header(h)
	for _, k := range []string{"Authorization", "Cookie", "X-Api-Key"} {
		if got[k] != "[REDACTED]" {
			t.Fatalf("%s not masked: %q", k, got[k])
		}
	}
	if got["X-Contact"] != "[REDACTED:email]" || got["Accept"] != "application/json, text/plain" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestAccessLog_NeverLogsSecrets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), AccessLog(RedactOptions{}))
	r.GET("/ws/chat/:id", func(c *gin.Context) { c.Status(http.StatusForbidden) })

	req := httptest.NewRequest(http.MethodGet, "/ws/chat/3?token=super-secret-token", nil)
	req.Header.Set("Authorization", "Bearer other-secret")
	req.AddCookie(&http.Cookie{Name: "coony_session", Value: "cookie-secret"})
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, secret := range []string{"super-secret-token", "other-secret", "cookie-secret"} {
		if strings.Contains(out, secret) {
			t.Fatalf("%s leaked into %s", secret, out)
		}
	}
	if line := accessLine(t, buf); line["level"] != "warn" || line["path"] != "/ws/chat/:id" {
		t.Fatalf("unexpected line: %v", line)
	}
}
