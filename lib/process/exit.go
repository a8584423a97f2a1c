// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// Exit terminates the process according to the error returned by a
// binary's run function. It returns normally when err is nil or
// --help was requested.
func Exit(program string, err error) {
	code := report(os.Stderr, program, err)
	if code != 0 {
		os.Exit(code)
	}
}

// report writes err for program and returns the exit status. Errors
// that carry their own status through an ExitCode method use it.
func report(output io.Writer, program string, err error) int {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	fmt.Fprintf(output, "%s: %v\n", program, err)
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
