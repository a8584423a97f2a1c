// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Format selects how Handler renders a slog record.
type Format int

const (
	// FormatJSON enqueues a mapping {"level", "msg", attrs...}; the
	// serializer turns it into one JSON object per event.
	FormatJSON Format = iota

	// FormatText enqueues "LEVEL message key=value ..." with group
	// names joined by dots.
	FormatText
)

// HandlerOptions configures Engine.Handler.
type HandlerOptions struct {
	// Level is the minimum level shipped. Defaults to slog.LevelInfo.
	Level slog.Leveler

	Format Format
}

// Handler returns a slog.Handler that enqueues every enabled record.
// Enqueue errors are not returned to the logger: a record after Close
// is reported once on the diagnostic logger, and oversized records or
// a full queue are counted in Stats.Rejected.
func (e *Engine) Handler(options *HandlerOptions) slog.Handler {
	handler := &engineHandler{engine: e, level: slog.LevelInfo}
	if options != nil {
		if options.Level != nil {
			handler.level = options.Level
		}
		handler.format = options.Format
	}
	return handler
}

type engineHandler struct {
	engine *Engine
	level  slog.Leveler
	format Format

	// preset holds attrs from WithAttrs, already nested under the
	// groups that were open at the time.
	preset []slog.Attr
	groups []string
}

func (h *engineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *engineHandler) Handle(ctx context.Context, record slog.Record) error {
	if isReporting(ctx) {
		return nil
	}

	fields := make(map[string]any)
	for _, attr := range h.preset {
		addAttr(fields, attr)
	}
	var recordAttrs []slog.Attr
	record.Attrs(func(attr slog.Attr) bool {
		recordAttrs = append(recordAttrs, attr)
		return true
	})
	if len(recordAttrs) > 0 {
		addAttr(fields, nest(h.groups, recordAttrs))
	}

	var payload any
	switch h.format {
	case FormatText:
		payload = formatText(record.Level, record.Message, fields)
	default:
		fields["level"] = record.Level.String()
		fields["msg"] = record.Message
		if !record.Time.IsZero() {
			fields["time"] = record.Time.Format(time.RFC3339Nano)
		}
		payload = fields
	}

	err := h.engine.Enqueue(payload, record.Time)
	if errors.Is(err, ErrClosed) {
		h.engine.enqueueAfterClose.Do(func() {
			h.engine.logger.Warn("log record received after engine close; dropping it and any later ones",
				"record_msg", record.Message,
			)
		})
	}
	return nil
}

func (h *engineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.preset = append(append([]slog.Attr(nil), h.preset...), nest(h.groups, attrs))
	return &clone
}

func (h *engineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// nest wraps attrs in the given groups, outermost first. With no
// groups it returns an inline group, which addAttr flattens.
func nest(groups []string, attrs []slog.Attr) slog.Attr {
	values := make([]any, len(attrs))
	for index, attr := range attrs {
		values[index] = attr
	}
	attr := slog.Group("", values...)
	for index := len(groups) - 1; index >= 0; index-- {
		attr = slog.Group(groups[index], attr)
	}
	return attr
}

// addAttr merges attr into fields, turning groups into nested maps.
func addAttr(fields map[string]any, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() != slog.KindGroup {
		fields[attr.Key] = attrValue(attr.Value)
		return
	}
	members := attr.Value.Group()
	if len(members) == 0 {
		return
	}
	target := fields
	if attr.Key != "" {
		nested, ok := fields[attr.Key].(map[string]any)
		if !ok {
			nested = make(map[string]any)
			fields[attr.Key] = nested
		}
		target = nested
	}
	for _, member := range members {
		addAttr(target, member)
	}
}

func attrValue(value slog.Value) any {
	switch value.Kind() {
	case slog.KindTime:
		return value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return err.Error()
		}
		return value.Any()
	default:
		return value.Any()
	}
}

// formatText renders "LEVEL message k=v ..." with keys sorted and
// nested maps flattened to dotted keys.
func formatText(level slog.Level, message string, fields map[string]any) string {
	var builder strings.Builder
	builder.WriteString(level.String())
	builder.WriteByte(' ')
	builder.WriteString(message)

	flat := make(map[string]any)
	flatten("", fields, flat)
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		builder.WriteByte(' ')
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(textValue(flat[key]))
	}
	return builder.String()
}

func flatten(prefix string, fields map[string]any, out map[string]any) {
	for key, value := range fields {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = value
	}
}

func textValue(value any) string {
	text := fmt.Sprint(value)
	if text == "" || strings.ContainsAny(text, " \t\n\"=") {
		return strconv.Quote(text)
	}
	return text
}

type reportingKey struct{}

// reportingHandler marks the context of every record the engine logs
// about itself. engineHandler drops marked records, which breaks the
// loop when the diagnostic logger writes back into the engine.
type reportingHandler struct {
	inner slog.Handler
}

func (h *reportingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *reportingHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.inner.Handle(context.WithValue(ctx, reportingKey{}, true), record)
}

func (h *reportingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &reportingHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *reportingHandler) WithGroup(name string) slog.Handler {
	return &reportingHandler{inner: h.inner.WithGroup(name)}
}

func isReporting(ctx context.Context) bool {
	marked, _ := ctx.Value(reportingKey{}).(bool)
	return marked
}
