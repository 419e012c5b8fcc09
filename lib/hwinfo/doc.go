// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hwinfo probes the virtual machine's hardware and kernel for
// the modules generator.
//
// # Mount tags
//
// A 9p share passed to the guest over virtio appears as a device bound
// to the 9pnet_virtio driver, with its tag readable from
// /sys/bus/virtio/drivers/9pnet_virtio/virtio*/mount_tag
// ([VirtioMountTagGlob]). [FindMountTag] reports whether any attached
// share carries a given tag. [FindMountTagFrom] takes an explicit root
// so tests can point it at a synthetic sysfs tree.
//
// Missing devices are normal: a pattern that matches nothing yields
// false. A descriptor that matched but cannot be read yields a
// [*ProbeError].
//
// # Kernel release
//
// [KernelRelease] returns the release string from uname(2), which
// names the running kernel's module directory under /lib/modules.
package hwinfo
