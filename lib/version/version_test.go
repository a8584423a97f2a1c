// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfoUsesInjectedCommit(t *testing.T) {
	savedCommit, savedDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = savedCommit, savedDirty })

	GitCommit, GitDirty = "abc1234", "true"
	if got := Info(); !strings.HasPrefix(got, Version+" (abc1234-dirty, ") {
		t.Errorf("Info() = %q", got)
	}
}

func TestInfoFallsBackToBuildStamp(t *testing.T) {
	savedCommit, savedRead := GitCommit, readBuildInfo
	t.Cleanup(func() { GitCommit, readBuildInfo = savedCommit, savedRead })

	GitCommit = "unknown"
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "false"},
		}}, true
	}
	if got := Info(); !strings.Contains(got, "(0123456789ab, ") {
		t.Errorf("Info() = %q", got)
	}

	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	if got := Info(); !strings.Contains(got, "(unknown, ") {
		t.Errorf("Info() without build info = %q", got)
	}
}

func TestFullAndUserAgent(t *testing.T) {
	if !strings.Contains(Full(), "Go: go") {
		t.Errorf("Full() = %q", Full())
	}
	if got := UserAgent("cwship-relay"); got != "cwship-relay/"+Version {
		t.Errorf("UserAgent = %q", got)
	}
}
