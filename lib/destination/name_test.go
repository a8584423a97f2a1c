// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package destination

import (
	"strings"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	t.Parallel()
	context := NameContext{
		Time:        time.Date(2026, 7, 4, 9, 5, 0, 0, time.UTC),
		MachineName: "web-3",
		ProgramName: "api",
		ProcessID:   4242,
		NewUUID:     func() string { return "00000000-0000-4000-8000-000000000000" },
	}

	tests := []struct {
		template string
		want     string
	}{
		{"plain-stream", "plain-stream"},
		{"{machine_name}/{program_name}/{process_id}", "web-3/api/4242"},
		{"app-{strftime:%Y-%m-%d}", "app-2026-07-04"},
		{"{strftime:%H%M}-{uuid}", "0905-00000000-0000-4000-8000-000000000000"},
	}
	for _, test := range tests {
		got, err := context.Resolve(test.template)
		if err != nil {
			t.Errorf("Resolve(%q): %v", test.template, err)
			continue
		}
		if got != test.want {
			t.Errorf("Resolve(%q) = %q, want %q", test.template, got, test.want)
		}
	}
}

func TestResolveUnknownPlaceholder(t *testing.T) {
	t.Parallel()
	_, err := NameContext{}.Resolve("{hostname}-{nope}")
	if err == nil {
		t.Fatal("Resolve accepted unknown placeholders")
	}
	if !strings.Contains(err.Error(), "{hostname}") || !strings.Contains(err.Error(), "{nope}") {
		t.Errorf("error %q does not name both placeholders", err)
	}
}

func TestResolveNameUsesProcess(t *testing.T) {
	t.Parallel()
	name, err := ResolveName("{process_id}", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if name == "" || name == "{process_id}" {
		t.Errorf("process_id not expanded: %q", name)
	}
}

func TestValidateNames(t *testing.T) {
	t.Parallel()
	if err := ValidateGroupName("/aws/app-logs_1#x.y"); err != nil {
		t.Errorf("valid group rejected: %v", err)
	}
	for _, bad := range []string{"", "has space", strings.Repeat("g", 513)} {
		if ValidateGroupName(bad) == nil {
			t.Errorf("group %q accepted", bad)
		}
	}
	if err := ValidateStreamName("web 3/api"); err != nil {
		t.Errorf("valid stream rejected: %v", err)
	}
	for _, bad := range []string{"", "a:b", "a*"} {
		if ValidateStreamName(bad) == nil {
			t.Errorf("stream %q accepted", bad)
		}
	}
}
