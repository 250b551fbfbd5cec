package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pankbase/functional/internal/platform/auth"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequestID_Generated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rid := rec.Header().Get(RequestIDHeader)
	if len(rid) != 36 {
		t.Errorf("expected generated uuid, got %q", rid)
	}
	if got, _ := c.Get("request_id").(string); got != rid {
		t.Errorf("context id %q does not match header %q", got, rid)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected propagated id, got %q", got)
	}
}

func TestRequestID_OversizedReplaced(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("expected replacement uuid, got %q", got)
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		level   string
		status  string
	}{
		{"success", okHandler, `"level":"info"`, `"status":200`},
		{"client error", func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusNotFound, "missing")
		}, `"level":"warn"`, `"status":404`},
		{"server error", func(c echo.Context) error {
			return errors.New("boom")
		}, `"level":"error"`, `"status":500`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cohort/summary", nil)
			req = req.WithContext(auth.WithUser(req.Context(), "user-1", nil))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.Set("request_id", "rid-1")

			_ = Logger(logger)(tt.handler)(c)

			out := buf.String()
			for _, want := range []string{tt.level, tt.status, `"request_id":"rid-1"`, `"user_id":"user-1"`} {
				if !strings.Contains(out, want) {
					t.Errorf("expected %s in log line, got %s", want, out)
				}
			}
		})
	}
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("kaboom")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	if !strings.Contains(buf.String(), "kaboom") {
		t.Errorf("expected panic value in log, got %s", buf.String())
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Recovery(zerolog.Nop())(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics_PassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cohort/summary", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/cohort/summary")

	if err := Metrics()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	wantErr := echo.NewHTTPError(http.StatusBadRequest, "bad")
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/nowhere", nil), httptest.NewRecorder())
	if err := Metrics()(func(echo.Context) error { return wantErr })(c); err != wantErr {
		t.Errorf("expected handler error to be returned, got %v", err)
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := SecurityHeaders()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-cache",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s: expected %q, got %q", header, want, got)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy to be set")
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := SecurityHeaders()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS over plain http, got %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXForwardedProto, "https")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if err := SecurityHeaders()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got == "" {
		t.Error("expected HSTS behind an https proxy")
	}
}

func TestSecurityHeaders_KeepsCacheControl(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Response().Header().Set("Cache-Control", "max-age=60")

	if err := SecurityHeaders()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Cache-Control"); got != "max-age=60" {
		t.Errorf("expected existing Cache-Control to be kept, got %q", got)
	}
}
