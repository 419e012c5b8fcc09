// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// EnvDebug enables debug logging when set to any non-empty value.
const EnvDebug = "VM_MODULES_DEBUG"

// NewLogger creates the structured logger for a binary. When stderr is
// a terminal, uses slog.TextHandler for human-readable output. When
// stderr is redirected (systemd hands generators the journal or kmsg),
// uses slog.JSONHandler for machine-parseable output.
//
// The level is Info, or Debug when debug is true or VM_MODULES_DEBUG
// is set.
func NewLogger(debug bool) *slog.Logger {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), debug || os.Getenv(EnvDebug) != "")
}

func newLogger(w io.Writer, terminal, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if terminal {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}
