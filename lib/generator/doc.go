// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package generator decides which units the 9p modules generator emits
// and writes them.
//
// A virtual machine can receive its kernel modules over a virtio 9p
// share tagged "modules" instead of shipping them in its image. When
// such a share is attached, [Generator.Run] writes, in order:
//
//  1. a tmpfs mount on /lib/modules/<release>, wanted by local-fs.target
//  2. a read-only 9p mount of the share on /lib/modules/<release>/build,
//     wanted by local-fs.target
//  3. 9p-modules.service, which links modules.order, modules.builtin
//     and kernel/ from build/ into the tmpfs and runs depmod, wanted by
//     sysinit.target
//
// Whether or not the share is present it then writes
// 9p-modules-cleanup.service, wanted by sysinit.target, which removes
// empty directories left under /lib/modules by earlier boots. A missing
// share is the common case and not an error.
//
// The first failure stops the run. Units written before it stay on disk
// and are overwritten by the next boot's run.
package generator
