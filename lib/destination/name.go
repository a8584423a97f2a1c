// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package destination

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"
)

// Name limits for CloudWatch Logs groups and streams.
const maxNameLength = 512

var (
	placeholderPattern = regexp.MustCompile(`\{([a-z_]+)(?::([^}]*))?\}`)
	groupNamePattern   = regexp.MustCompile(`^[.\-_/#A-Za-z0-9]+$`)
)

// NameContext supplies the values placeholders expand to.
type NameContext struct {
	Time        time.Time
	MachineName string
	ProgramName string
	ProcessID   int

	// NewUUID generates the {uuid} value. Defaults to a random v4
	// UUID.
	NewUUID func() string
}

// CurrentNameContext describes the running process at now.
func CurrentNameContext(now time.Time) NameContext {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return NameContext{
		Time:        now,
		MachineName: hostname,
		ProgramName: filepath.Base(os.Args[0]),
		ProcessID:   os.Getpid(),
	}
}

// ResolveName expands placeholders in template using the running
// process and the given time. See NameContext.Resolve.
func ResolveName(template string, now time.Time) (string, error) {
	return CurrentNameContext(now).Resolve(template)
}

// Resolve expands placeholders in template:
//
//	{strftime:FORMAT}  Time formatted with C strftime directives
//	{machine_name}     host name
//	{program_name}     base name of the executable
//	{process_id}       decimal process ID
//	{uuid}             a fresh random UUID
//
// Unknown placeholders are an error. Text outside braces is copied
// unchanged.
func (c NameContext) Resolve(template string) (string, error) {
	var unknown []string
	resolved := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		name, argument := parts[1], parts[2]
		switch name {
		case "strftime":
			return strftime.Format(argument, c.Time)
		case "machine_name":
			return c.MachineName
		case "program_name":
			return c.ProgramName
		case "process_id":
			return strconv.Itoa(c.ProcessID)
		case "uuid":
			if c.NewUUID != nil {
				return c.NewUUID()
			}
			return uuid.NewString()
		default:
			unknown = append(unknown, match)
			return match
		}
	})
	if len(unknown) > 0 {
		return "", fmt.Errorf("unknown placeholder %s in %q", strings.Join(unknown, ", "), template)
	}
	return resolved, nil
}

// ValidateGroupName checks a resolved log group name against the
// characters and length CloudWatch Logs accepts.
func ValidateGroupName(name string) error {
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("log group name must be 1 to %d characters, got %d", maxNameLength, len(name))
	}
	if !groupNamePattern.MatchString(name) {
		return fmt.Errorf("log group name %q contains characters outside [.-_/#A-Za-z0-9]", name)
	}
	return nil
}

// ValidateStreamName checks a resolved log stream name.
func ValidateStreamName(name string) error {
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("log stream name must be 1 to %d characters, got %d", maxNameLength, len(name))
	}
	if strings.ContainsAny(name, ":*") {
		return fmt.Errorf("log stream name %q must not contain ':' or '*'", name)
	}
	return nil
}
