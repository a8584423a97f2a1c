// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	fake := Fake(epoch)
	channel := fake.After(3 * time.Second)

	fake.Advance(2 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-channel:
		if want := epoch.Add(3 * time.Second); !fired.Equal(want) {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
	if fake.pendingCount() != 0 {
		t.Fatalf("one-shot timer still pending: %d", fake.pendingCount())
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	fake := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-fake.After(d):
		default:
			t.Fatalf("After(%v) did not fire immediately", d)
		}
	}
}

func TestFakeTickerRearms(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		fake.Advance(time.Minute)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d missing", i)
		}
	}
	if fake.pendingCount() != 1 {
		t.Fatalf("ticker should stay armed, pending = %d", fake.pendingCount())
	}

	ticker.Stop()
	if fake.pendingCount() != 0 {
		t.Fatalf("stopped ticker still armed, pending = %d", fake.pendingCount())
	}
}

func TestFakeTickerDropsWhenFull(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	fake.Advance(5 * time.Second)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("ticker queued more than one tick")
	default:
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	woke := make(chan struct{})
	go func() {
		<-fake.After(10 * time.Second)
		close(woke)
	}()

	fake.WaitForTimers(1)
	fake.Advance(10 * time.Second)
	<-woke
	if got := fake.Now(); !got.Equal(epoch.Add(10 * time.Second)) {
		t.Fatalf("Now() = %v", got)
	}
}

func TestRealClockTicker(t *testing.T) {
	ticker := Real().NewTicker(time.Millisecond)
	defer ticker.Stop()
	<-ticker.C
}
