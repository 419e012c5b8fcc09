// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package unit renders systemd unit files from typed descriptions.
//
// [Mount] and [Service] describe the two unit kinds the generator
// emits. Each converts to a [File], an ordered list of sections and
// key/value entries, and [File.Render] produces the exact bytes written
// to disk. Keys within [Unit] always render in the same order and empty
// list fields are omitted, so a description renders identically on
// every run.
package unit
