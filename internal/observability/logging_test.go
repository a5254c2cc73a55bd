package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithStage(ctx, "resolve")
	ctx = WithUnit(ctx, "QAction_1")
	ctx = WithArtifact(ctx, "MyProtocol")

	lc := GetContext(ctx)
	if lc.SessionID != "session-1" {
		t.Errorf("expected session-1, got %s", lc.SessionID)
	}
	if lc.Stage != "resolve" {
		t.Errorf("expected resolve, got %s", lc.Stage)
	}
	if lc.Unit != "QAction_1" {
		t.Errorf("expected QAction_1, got %s", lc.Unit)
	}
	if lc.Artifact != "MyProtocol" {
		t.Errorf("expected MyProtocol, got %s", lc.Artifact)
	}
}

func TestOverwriteContextValue(t *testing.T) {
	ctx := WithStage(context.Background(), "resolve")
	ctx = WithStage(ctx, "inject")

	if got := GetContext(ctx).Stage; got != "inject" {
		t.Errorf("expected inject, got %s", got)
	}
}

func TestEmptyContext(t *testing.T) {
	lc := GetContext(context.Background())
	if lc != (LogContext{}) {
		t.Errorf("expected empty context, got %+v", lc)
	}
}

func TestInfoContextIncludesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithUnit(WithSessionID(context.Background(), "s-42"), "QAction_7")
	InfoContext(ctx, "unit injected", slog.Int("imports", 2))
	DebugContext(ctx, "debug line")

	out := buf.String()
	for _, want := range []string{"session_id=s-42", "unit=QAction_7", "imports=2", "unit injected", "debug line"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got %s", want, out)
		}
	}
}
