package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1M", 1 << 20},
		{"10MB", 10 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"1024", 1024},
		{"", 1 << 20},
		{"invalid", 1 << 20},
	}

	for _, tt := range tests {
		if got := parseLimit(tt.input); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func runBodyLimit(t *testing.T, mw echo.MiddlewareFunc, req *http.Request, handler echo.HandlerFunc) error {
	t.Helper()
	c := echo.New().NewContext(req, httptest.NewRecorder())
	return mw(handler)(c)
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d", code, he.Code)
	}
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/history", strings.NewReader(`{"symptoms":"Febre"}`))
	called := false
	err := runBodyLimit(t, BodyLimit("1M", "10M"), req, func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		called = len(b) > 0
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to read the body")
	}
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/history", bytes.NewReader(bytes.Repeat([]byte("x"), 2048)))
	err := runBodyLimit(t, BodyLimit("1K", "10M"), req, func(echo.Context) error {
		t.Error("handler should not be called when body exceeds limit")
		return nil
	})
	expectStatus(t, err, http.StatusRequestEntityTooLarge)
}

func TestBodyLimit_ImportGetsLargerLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, ImportPath, bytes.NewReader(bytes.Repeat([]byte("x"), 2048)))
	called := false
	err := runBodyLimit(t, BodyLimit("1K", "10M"), req, func(echo.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected import within its limit to reach the handler")
	}
}

func TestBodyLimit_RejectsImportOverLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, ImportPath+"/", bytes.NewReader(bytes.Repeat([]byte("x"), 2048)))
	err := runBodyLimit(t, BodyLimit("512", "1K"), req, func(echo.Context) error {
		t.Error("handler should not be called")
		return nil
	})
	expectStatus(t, err, http.StatusRequestEntityTooLarge)
}

func TestBodyLimit_SkipsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/first-aid", nil)
	called := false
	err := runBodyLimit(t, BodyLimit("1", "1"), req, func(echo.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected pass-through, called=%v err=%v", called, err)
	}
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/history", bytes.NewReader(bytes.Repeat([]byte("a"), 1024)))
	req.ContentLength = -1
	err := runBodyLimit(t, BodyLimit("512", "10M"), req, func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})
	expectStatus(t, err, http.StatusRequestEntityTooLarge)
}
