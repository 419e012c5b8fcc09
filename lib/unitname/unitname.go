// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unitname

import (
	"errors"
	"fmt"
	"strings"
)

// NameMax is the longest unit name, suffix included, that fits in a
// single directory entry (NAME_MAX on Linux).
const NameMax = 255

// MountSuffix is the unit type suffix for mount units.
const MountSuffix = ".mount"

var (
	// ErrEmptyPath is returned for an empty input path.
	ErrEmptyPath = errors.New("empty path")

	// ErrNameTooLong is returned when the escaped name would exceed
	// NameMax bytes.
	ErrNameTooLong = errors.New("unit name too long")
)

const hexDigits = "0123456789abcdef"

// Mount returns the mount unit name for the mount point path.
func Mount(path string) (string, error) {
	return FromPath(path, MountSuffix)
}

// FromPath escapes path into a unit name ending in suffix. The result
// is deterministic: the same input always produces the same bytes.
func FromPath(path, suffix string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	budget := NameMax - len(suffix)
	if budget < 1 {
		return "", fmt.Errorf("suffix %q: %w", suffix, ErrNameTooLong)
	}

	span := path
	if span != "/" {
		span = strings.TrimSuffix(span, "/")
		span = strings.TrimPrefix(span, "/")
	}
	if span == "/" || span == "" {
		return "-" + suffix, nil
	}

	var body strings.Builder
	body.Grow(len(span) + len(suffix))

	for i := 0; i < len(span); i++ {
		c := span[i]
		switch {
		case c == '/':
			if body.Len()+1 > budget {
				return "", fmt.Errorf("escaping %q: %w", path, ErrNameTooLong)
			}
			body.WriteByte('-')
		case isPlain(c) || (c == '.' && body.Len() > 0):
			if body.Len()+1 > budget {
				return "", fmt.Errorf("escaping %q: %w", path, ErrNameTooLong)
			}
			body.WriteByte(c)
		default:
			if body.Len()+4 > budget {
				return "", fmt.Errorf("escaping %q: %w", path, ErrNameTooLong)
			}
			body.WriteString(`\x`)
			body.WriteByte(hexDigits[c>>4])
			body.WriteByte(hexDigits[c&0x0f])
		}
	}

	body.WriteString(suffix)
	return body.String(), nil
}

// isPlain reports whether c is copied into a unit name unchanged
// regardless of position.
func isPlain(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}
