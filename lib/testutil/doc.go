// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the generator
// packages.
//
// [WriteFile] builds synthetic filesystem trees (fake sysfs mount_tag
// descriptors, pre-existing generator output) beneath a test's temp
// directory. [Snapshot] captures a directory tree, including symlink
// targets, as a map that tests compare against expected layouts or
// against a second run's snapshot.
//
// [RequireErrorIs] encapsulates the errors.Is check with a formatted
// failure message.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no internal dependencies.
package testutil
