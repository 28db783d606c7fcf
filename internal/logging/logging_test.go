package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSanitizingHandler_FingerprintsCallerAndRedactsTokens(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("request", "caller", "alice", "bearer_token", "abc.def", "status", 200)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if _, ok := payload["caller"]; ok {
		t.Fatal("caller should not be present in plain form")
	}
	fp, _ := payload["caller_fp"].(string)
	if !strings.HasPrefix(fp, "fp_") {
		t.Fatalf("expected caller fingerprint, got %q", fp)
	}
	if got, _ := payload["bearer_token"].(string); got != redactedValue {
		t.Fatalf("expected redacted token, got %q", got)
	}
	if got, _ := payload["status"].(float64); got != 200 {
		t.Fatalf("expected untouched status, got %v", payload["status"])
	}
}

func TestSanitizingHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil))).
		With("caller", "bob").
		With(slog.Group("auth", slog.String("authorization", "Bearer x")))
	logger.Info("hello")

	out := buf.String()
	if strings.Contains(out, "bob") || strings.Contains(out, "Bearer x") {
		t.Fatalf("leaked sensitive values: %s", out)
	}
}

func TestFingerprint_StableWithinProcess(t *testing.T) {
	t.Parallel()

	if Fingerprint("alice") != Fingerprint(" alice ") {
		t.Fatal("expected whitespace-insensitive fingerprint")
	}
	if Fingerprint("alice") == Fingerprint("bob") {
		t.Fatal("expected distinct fingerprints")
	}
	if Fingerprint("") != "" {
		t.Fatal("expected empty fingerprint for empty input")
	}
}

func TestNew_RejectsUnknownSettings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := New(&buf, "loud", "json"); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := New(&buf, "info", "xml"); err == nil {
		t.Fatal("expected format error")
	}
	l, err := New(&buf, "warn", "text")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l.Handler().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	rec := slog.NewRecord(time.Now(), slog.LevelWarn, "x", 0)
	if err := l.Handler().Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle: %v", err)
	}
}
