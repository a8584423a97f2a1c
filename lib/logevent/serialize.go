// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logevent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"
)

// TruncationMarker is appended to messages cut to fit the size limit.
const TruncationMarker = "...[truncated]"

// Fallback replaces a value that JSON cannot encode. The returned
// value is encoded in its place; if it is still not encodable the
// default rendering is used instead.
type Fallback func(value any) any

// DefaultFallback renders a value in Go syntax (%#v).
func DefaultFallback(value any) any {
	return fmt.Sprintf("%#v", value)
}

// Serializer converts payloads into message bytes. The zero value
// uses DefaultFallback and DefaultMaxMessageBytes.
type Serializer struct {
	// Fallback renders values JSON cannot encode. Nil means
	// DefaultFallback.
	Fallback Fallback

	// MaxMessageBytes bounds the encoded message. Zero means
	// DefaultMaxMessageBytes.
	MaxMessageBytes int
}

// Record serializes payload and stamps it at t.
func (s Serializer) Record(payload any, t time.Time) Record {
	return NewRecord(t, s.Serialize(payload))
}

// Serialize renders payload as message bytes. It never fails:
// unencodable values degrade to their fallback rendering, and a
// panic from a payload's own marshaling method degrades the whole
// payload to the default rendering.
func (s Serializer) Serialize(payload any) (message []byte) {
	defer func() {
		if recovered := recover(); recovered != nil {
			message = s.truncate([]byte(fmt.Sprintf("%#v", payload)))
		}
	}()

	switch value := payload.(type) {
	case string:
		message = []byte(value)
	case []byte:
		message = append([]byte(nil), value...)
	case error:
		message = []byte(value.Error())
	case nil:
		message = []byte("null")
	default:
		message = s.encodeJSON(value)
	}
	return s.truncate(message)
}

func (s Serializer) maxBytes() int {
	if s.MaxMessageBytes > 0 {
		return s.MaxMessageBytes
	}
	return DefaultMaxMessageBytes
}

func (s Serializer) fallback(value any) any {
	if s.Fallback == nil {
		return DefaultFallback(value)
	}
	replacement := s.Fallback(value)
	if _, err := marshalCompact(replacement); err != nil {
		return DefaultFallback(value)
	}
	return replacement
}

// encodeJSON tries the whole value first. Only when that fails does
// it walk the value and substitute fallbacks for the parts that do
// not encode.
func (s Serializer) encodeJSON(value any) []byte {
	if encoded, err := marshalCompact(value); err == nil {
		return encoded
	}
	encoded, err := marshalCompact(s.sanitize(reflect.ValueOf(value), 0))
	if err != nil {
		encoded, _ = marshalCompact(DefaultFallback(value))
	}
	return encoded
}

// maxSanitizeDepth stops the walk on cyclic structures.
const maxSanitizeDepth = 64

// sanitize rebuilds maps and slices with every element that fails to
// encode replaced by its fallback. Leaves are tested individually.
func (s Serializer) sanitize(value reflect.Value, depth int) any {
	if !value.IsValid() {
		return nil
	}
	if depth > maxSanitizeDepth {
		return fmt.Sprintf("%s(depth limit)", value.Type())
	}

	switch value.Kind() {
	case reflect.Interface, reflect.Pointer:
		if value.IsNil() {
			return nil
		}
		if encoded, err := marshalCompact(value.Interface()); err == nil {
			return json.RawMessage(encoded)
		}
		if value.Kind() == reflect.Pointer {
			return s.fallback(value.Interface())
		}
		return s.sanitize(value.Elem(), depth+1)

	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, value.Len())
		iterator := value.MapRange()
		for iterator.Next() {
			out[iterator.Key().String()] = s.sanitize(iterator.Value(), depth+1)
		}
		return out

	case reflect.Slice, reflect.Array:
		if value.Kind() == reflect.Slice && value.IsNil() {
			return nil
		}
		out := make([]any, value.Len())
		for i := range out {
			out[i] = s.sanitize(value.Index(i), depth+1)
		}
		return out
	}

	if !value.CanInterface() {
		return nil
	}
	leaf := value.Interface()
	encoded, err := marshalCompact(leaf)
	if err != nil {
		return s.fallback(leaf)
	}
	return json.RawMessage(encoded)
}

// truncate enforces the message limit, cutting on a rune boundary
// so no multi-byte sequence is split.
func (s Serializer) truncate(message []byte) []byte {
	limit := s.maxBytes()
	if len(message) <= limit {
		return message
	}
	cut := limit - len(TruncationMarker)
	if cut < 0 {
		cut = 0
	}
	cut = runeBoundary(message, cut)
	out := make([]byte, 0, cut+len(TruncationMarker))
	out = append(out, message[:cut]...)
	out = append(out, TruncationMarker...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// runeBoundary moves cut back to the start of a valid multi-byte
// rune it splits. Stray continuation bytes count as single units, so
// invalid UTF-8 is cut where it falls.
func runeBoundary(message []byte, cut int) int {
	for start := cut; start > 0 && cut-start < utf8.UTFMax-1; {
		start--
		if !utf8.RuneStart(message[start]) {
			continue
		}
		r, size := utf8.DecodeRune(message[start:])
		if r != utf8.RuneError && start+size > cut {
			return start
		}
		return cut
	}
	return cut
}

// marshalCompact encodes without HTML escaping and without the
// trailing newline json.Encoder writes.
func marshalCompact(value any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}
