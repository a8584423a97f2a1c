// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package destination

import "sync"

// Sequencer holds the sequence token for one stream.
//
// The token only ever comes from the service: either the next token a
// successful write returned, or the current token read back after the
// cached one went stale. It is never derived locally.
type Sequencer struct {
	mu    sync.Mutex
	token string
	stale bool
}

// CurrentToken returns the last token the service handed out. ok is
// false when no token is known, which is also the case for a stream
// that has never been written.
func (s *Sequencer) CurrentToken() (token string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// Update records the token returned by a successful write. An empty
// token clears it.
func (s *Sequencer) Update(next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = next
	s.stale = false
}

// Invalidate drops the cached token. The next write must ask the
// service for the current one first.
func (s *Sequencer) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.stale = true
}

// NeedsProbe reports whether the cached token was invalidated and not
// yet replaced.
func (s *Sequencer) NeedsProbe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}
