// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// 9p-modules-generator is a systemd generator that makes kernel modules
// shared from the host available inside a virtual machine.
//
// systemd runs it early in boot as
//
//	9p-modules-generator normal-dir early-dir late-dir
//
// It scans the mount tags of virtio 9p devices for one named "modules".
// When it finds one, it writes into normal-dir a tmpfs mount at
// /lib/modules/<release>, a read-only 9p mount of the share at
// /lib/modules/<release>/build, and a oneshot service that links the
// shared tree into place and runs depmod before the module loaders
// start. A cleanup service that removes empty per-release directories
// under /lib/modules is written on every run. The early and late
// directories are ignored.
//
// Paths, the mount tag and tool locations can be changed with a YAML or
// JSONC file named by --config or VM_MODULES_CONFIG. --root and
// --release redirect the probe and the kernel release for testing an
// image outside the VM.
package main
