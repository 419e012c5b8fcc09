// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// KernelRelease returns the running kernel's release string, as printed
// by "uname -r".
func KernelRelease() (string, error) {
	var utsname unix.Utsname
	if err := unix.Uname(&utsname); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	release := unix.ByteSliceToString(utsname.Release[:])
	if release == "" {
		return "", errors.New("uname: empty kernel release")
	}
	return release, nil
}
