// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package unitname converts absolute filesystem paths into systemd unit
// names, the way systemd derives mount unit names from their Where=
// path (see systemd.unit(5), "String Escaping for Inclusion in Unit
// Names").
//
// The leading and trailing "/" are dropped, remaining separators become
// "-", and any byte outside [A-Za-z0-9_.] is written as a \xHH escape.
// A "." is escaped when it would be the first byte of the name. The
// root directory maps to "-".
//
// Names never exceed [NameMax] bytes including the suffix. The length
// is checked before every append, so an escape that would cross the
// ceiling fails at that byte rather than producing a truncated name.
package unitname
