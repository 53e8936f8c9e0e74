package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInit_LevelAndFormat(t *testing.T) {
	if err := Init(Config{Level: "warn", Format: "json"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = Init(Config{Level: "info"}) }()

	if globalLevel.Level() != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", globalLevel.Level())
	}
	if current().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	if err := Init(Config{Level: "loud"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if globalLevel.Level() != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", globalLevel.Level())
	}
}

func TestSetLevel(t *testing.T) {
	if err := Init(Config{Level: "info"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	SetLevel("debug")
	if globalLevel.Level() != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", globalLevel.Level())
	}

	SetLevel("nonsense")
	if globalLevel.Level() != zapcore.DebugLevel {
		t.Errorf("invalid level should be ignored, got %v", globalLevel.Level())
	}
	SetLevel("info")
}

func TestMiddleware_PassesThroughStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tree", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
