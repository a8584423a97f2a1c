// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logship

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/cwship/lib/testutil"
	"github.com/bureau-foundation/cwship/lib/transport/memory"
)

func TestHandlerJSON(t *testing.T) {
	t.Parallel()
	engine, service := newEngine(t, nil)
	handler := engine.Handler(nil).WithAttrs([]slog.Attr{slog.String("service", "billing")}).WithGroup("req")
	logger := slog.New(handler)

	at := time.Date(2026, 9, 1, 8, 30, 0, 250_000_000, time.UTC)
	record := slog.NewRecord(at, slog.LevelInfo, "charged", 0)
	record.Add("amount", 12, "elapsed", 1500*time.Millisecond)
	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	logger.Debug("not shipped")
	engine.Flush(5 * time.Second)

	got := delivered(service, engine)
	want := `{"level":"INFO","msg":"charged","req":{"amount":12,"elapsed":"1.5s"},"service":"billing","time":"2026-09-01T08:30:00.25Z"}`
	if len(got) != 1 || got[0] != want {
		t.Errorf("delivered %q, want [%s]", got, want)
	}
}

func TestHandlerText(t *testing.T) {
	t.Parallel()
	engine, service := newEngine(t, nil)
	logger := slog.New(engine.Handler(&HandlerOptions{Level: slog.LevelDebug, Format: FormatText}))

	logger.Debug("cache miss", "key", "user 7", slog.Group("shard", "id", 3))
	engine.Flush(5 * time.Second)

	got := delivered(service, engine)
	want := `DEBUG cache miss key="user 7" shard.id=3`
	if len(got) != 1 || got[0] != want {
		t.Errorf("delivered %q, want [%s]", got, want)
	}
}

func TestHandlerErrorAttr(t *testing.T) {
	t.Parallel()
	engine, service := newEngine(t, nil)
	slog.New(engine.Handler(nil)).Error("failed", "error", errors.New("disk full"))
	engine.Flush(5 * time.Second)

	got := delivered(service, engine)
	want := `{"error":"disk full","level":"ERROR","msg":"failed"}`
	if len(got) != 1 || got[0] != want {
		t.Errorf("delivered %q, want [%s]", got, want)
	}
}

// switchHandler forwards to whatever handler is installed, so a test
// can build the engine first and then route its diagnostic logger
// back into the engine's own handler.
type switchHandler struct {
	target slog.Handler
}

func (s *switchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.target.Enabled(ctx, level)
}
func (s *switchHandler) Handle(ctx context.Context, record slog.Record) error {
	return s.target.Handle(ctx, record)
}
func (s *switchHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return s }
func (s *switchHandler) WithGroup(name string) slog.Handler       { return s }

func TestDiagnosticsDoNotFeedBack(t *testing.T) {
	t.Parallel()
	router := &switchHandler{target: slog.NewTextHandler(io.Discard, nil)}
	engine, service := newEngine(t, func(options *Options) {
		options.Logger = slog.New(router)
	})
	router.target = engine.Handler(&HandlerOptions{Level: slog.LevelDebug})
	service.InjectFault(memory.OpPut, errors.New("denied"))

	if err := engine.Enqueue("payload", epoch); err != nil {
		t.Fatal(err)
	}
	engine.Flush(5 * time.Second)
	if !engine.Flush(5 * time.Second) {
		t.Fatal("second Flush did not complete")
	}

	if got := delivered(service, engine); len(got) != 0 {
		t.Errorf("diagnostics were shipped: %q", got)
	}
	if stats := engine.Stats(); stats.Enqueued != 1 {
		t.Errorf("enqueued = %d, want only the payload", stats.Enqueued)
	}
}

func TestHandlerAfterCloseWarnsOnce(t *testing.T) {
	t.Parallel()
	diagnostics, capture := testutil.CaptureLogger()
	engine, _ := newEngine(t, func(options *Options) {
		options.Logger = diagnostics
	})
	logger := slog.New(engine.Handler(nil))
	if err := engine.Close(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	logger.Info("first late record")
	logger.Info("second late record")

	text := capture.String()
	if count := strings.Count(text, "after engine close"); count != 1 {
		t.Errorf("after-close warning logged %d times:\n%s", count, text)
	}
	if !strings.Contains(text, "first late record") {
		t.Errorf("warning does not name the dropped record:\n%s", text)
	}
}
