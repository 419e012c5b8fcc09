// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package unitdir writes generated unit files into a generator output
// directory and enrolls them into targets through "<target>.wants"
// symlinks.
//
// A [Dir] holds an open descriptor on the output directory and performs
// every operation relative to it (openat, mkdirat, symlinkat), so the
// process working directory is never consulted or changed.
//
// Unit writes truncate and replace any previous file of the same name.
// Enrollment is idempotent: an existing ".wants" directory, or an
// existing symlink that already points at the unit, is success. A
// symlink pointing somewhere else is left over from a differently
// configured run and is replaced. Any other existing entry is an
// error.
//
// Neither operation is transactional. A crash between [Dir.WriteUnit]
// and [Dir.Enable] leaves a unit on disk that nothing wants, which the
// next run overwrites.
package unitdir
