package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromCtx(t *testing.T) {
	if FromCtx(context.Background()) != slog.Default() {
		t.Error("expected default logger for a bare context")
	}
	l := slog.Default().With("request_id", "abc")
	if FromCtx(WithLogger(context.Background(), l)) != l {
		t.Error("expected the stored logger")
	}
}
