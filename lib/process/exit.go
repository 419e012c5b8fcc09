// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Fatal reports err to stderr and exits with the code [Report] chooses.
// Use it in main() for errors from run() where the structured logger
// may not be initialized.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report returns the exit code for err. An error with an ExitCode()
// method has already written its own output and only supplies the code;
// any other error is written to w as "error: err" and yields 1. A nil
// err reports nothing and returns 0.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
