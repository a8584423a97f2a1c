// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"fmt"

	"github.com/bureau-foundation/cwship/lib/codec"
	"github.com/bureau-foundation/cwship/lib/logevent"
)

// Actions.
const (
	actionEnsure = "ensure"
	actionToken  = "token"
	actionPut    = "put"
)

// maxMessageSize bounds one request or response on the wire. One
// batch is at most 1 MiB of payload; the rest is envelope slack.
const maxMessageSize = 4 * 1024 * 1024

type request struct {
	Action string `cbor:"action"`
	Group  string `cbor:"group"`
	Stream string `cbor:"stream"`
	Token  string `cbor:"token,omitempty"`

	// Put only.
	Compression string `cbor:"compression,omitempty"`
	EventCount  int    `cbor:"event_count,omitempty"`
	RawSize     int    `cbor:"raw_size,omitempty"`
	Events      []byte `cbor:"events,omitempty"`
}

type response struct {
	OK            bool   `cbor:"ok"`
	Error         string `cbor:"error,omitempty"`
	Kind          string `cbor:"kind,omitempty"`
	ExpectedToken string `cbor:"expected_token,omitempty"`
	Token         string `cbor:"token,omitempty"`
	Created       bool   `cbor:"created,omitempty"`
}

type wireEvent struct {
	Timestamp int64  `cbor:"t"`
	Message   []byte `cbor:"m"`
}

// encodeEvents packs records into the put request's events field.
func encodeEvents(records []logevent.Record, compression Compression) (*request, error) {
	events := make([]wireEvent, len(records))
	for index, record := range records {
		events[index] = wireEvent{Timestamp: record.Timestamp, Message: record.Payload}
	}
	raw, err := codec.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encoding events: %w", err)
	}
	packed, used, err := compress(raw, compression)
	if err != nil {
		return nil, err
	}
	return &request{
		Compression: used.String(),
		EventCount:  len(records),
		RawSize:     len(raw),
		Events:      packed,
	}, nil
}

// decodeEvents reverses encodeEvents.
func decodeEvents(incoming *request) ([]logevent.Record, error) {
	compression, err := ParseCompression(incoming.Compression)
	if err != nil {
		return nil, err
	}
	if incoming.RawSize < 0 || incoming.RawSize > maxMessageSize {
		return nil, fmt.Errorf("events raw size %d out of range", incoming.RawSize)
	}
	raw, err := decompress(incoming.Events, compression, incoming.RawSize)
	if err != nil {
		return nil, err
	}
	var events []wireEvent
	if err := codec.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decoding events: %w", err)
	}
	if len(events) != incoming.EventCount {
		return nil, fmt.Errorf("request declares %d events but carries %d", incoming.EventCount, len(events))
	}
	records := make([]logevent.Record, len(events))
	for index, event := range events {
		records[index] = logevent.Record{
			Timestamp: event.Timestamp,
			Payload:   event.Message,
			ByteSize:  len(event.Message) + logevent.EventOverhead,
		}
	}
	return records, nil
}
