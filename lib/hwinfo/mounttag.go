// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// VirtioMountTagGlob matches the mount_tag attribute of every device
// bound to the 9p virtio transport driver.
const VirtioMountTagGlob = "/sys/bus/virtio/drivers/9pnet_virtio/virtio*/mount_tag"

// ErrEmptyMountTag is returned for a mount_tag descriptor with no
// content.
var ErrEmptyMountTag = errors.New("empty mount tag")

// ProbeError reports a descriptor that matched the probe pattern but
// could not be read. A glob match that then fails to read means the
// device tree changed underneath us, so the run stops.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("reading mount tag %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// FindMountTag reports whether any descriptor matching pattern on the
// running system holds exactly tag.
func FindMountTag(pattern, tag string) (bool, error) {
	return FindMountTagFrom("/", pattern, tag)
}

// FindMountTagFrom is FindMountTag with pattern resolved beneath root,
// so tests can point it at a synthetic sysfs tree. A pattern that
// matches nothing is not an error. The scan stops at the first match.
func FindMountTagFrom(root, pattern, tag string) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return false, fmt.Errorf("expanding %s: %w", pattern, err)
	}

	for _, match := range matches {
		value, err := ReadMountTag(match)
		if err != nil {
			return false, err
		}
		if value == tag {
			return true, nil
		}
	}
	return false, nil
}

// ReadMountTag reads a virtio mount_tag descriptor. The kernel writes
// the tag followed by a NUL byte; the returned tag excludes it. Content
// after the first NUL is ignored.
func ReadMountTag(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", &ProbeError{Path: path, Err: err}
	}
	defer file.Close()

	value, err := bufio.NewReader(file).ReadString(0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", &ProbeError{Path: path, Err: err}
	}
	if value == "" {
		return "", &ProbeError{Path: path, Err: ErrEmptyMountTag}
	}
	return strings.TrimSuffix(value, "\x00"), nil
}
