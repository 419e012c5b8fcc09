// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unitdir

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	unitMode  = 0o644
	wantsMode = 0o755

	// readlinkBufferSize bounds symlink targets we compare against.
	// Targets written by Enable are "../<unit>", far below this.
	readlinkBufferSize = 4096
)

var (
	// ErrInvalidName is returned for unit or target names that are not
	// a single path element.
	ErrInvalidName = errors.New("invalid name")

	// ErrNotDirectory is returned when a "<target>.wants" entry exists
	// but is not a directory.
	ErrNotDirectory = errors.New("exists and is not a directory")

	// ErrNotSymlink is returned when the enrollment entry for a unit
	// exists but is not a symlink.
	ErrNotSymlink = errors.New("exists and is not a symlink")
)

// Dir is an open generator output directory.
type Dir struct {
	path   string
	fd     int
	logger *slog.Logger
}

// Open opens the output directory at path. The directory must exist.
func Open(path string) (*Dir, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return &Dir{
		path:   path,
		fd:     fd,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// SetLogger sets the logger for enrollment repairs. A nil logger
// discards output.
func (d *Dir) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d.logger = logger
}

// Path returns the directory path given to Open.
func (d *Dir) Path() string {
	return d.path
}

// Close releases the directory descriptor.
func (d *Dir) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	if err != nil {
		return &os.PathError{Op: "close", Path: d.path, Err: err}
	}
	return nil
}

// WriteUnit creates or truncates the unit file name and writes body to
// it, returning the digest of what was written.
func (d *Dir) WriteUnit(name string, body []byte) (Digest, error) {
	if err := checkName(name); err != nil {
		return Digest{}, err
	}

	fullPath := d.join(name)
	fd, err := unix.Openat(d.fd, name, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC|unix.O_CLOEXEC, unitMode)
	if err != nil {
		return Digest{}, &os.PathError{Op: "openat", Path: fullPath, Err: err}
	}

	file := os.NewFile(uintptr(fd), fullPath)
	_, writeErr := file.Write(body)
	closeErr := file.Close()
	if writeErr != nil {
		return Digest{}, fmt.Errorf("writing unit %s: %w", name, writeErr)
	}
	if closeErr != nil {
		return Digest{}, fmt.Errorf("closing unit %s: %w", name, closeErr)
	}

	return HashUnit(body), nil
}

// Enable makes target want unit by creating the symlink
// "<target>.wants/<unit>" -> "../<unit>".
func (d *Dir) Enable(target, unit string) error {
	if err := checkName(target); err != nil {
		return err
	}
	if err := checkName(unit); err != nil {
		return err
	}

	wants := target + ".wants"
	if err := d.ensureDirectory(wants); err != nil {
		return err
	}
	return d.ensureSymlink("../"+unit, wants+"/"+unit)
}

// ensureDirectory creates name, accepting an existing directory.
func (d *Dir) ensureDirectory(name string) error {
	err := unix.Mkdirat(d.fd, name, wantsMode)
	if err == nil {
		return nil
	}
	if err != unix.EEXIST {
		return &os.PathError{Op: "mkdirat", Path: d.join(name), Err: err}
	}

	var stat unix.Stat_t
	if err := unix.Fstatat(d.fd, name, &stat, 0); err != nil {
		return &os.PathError{Op: "fstatat", Path: d.join(name), Err: err}
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFDIR {
		return &os.PathError{Op: "mkdirat", Path: d.join(name), Err: ErrNotDirectory}
	}
	return nil
}

// ensureSymlink creates linkPath pointing at target, accepting an
// existing link with the same target and replacing one with a
// different target.
func (d *Dir) ensureSymlink(target, linkPath string) error {
	err := unix.Symlinkat(target, d.fd, linkPath)
	if err == nil {
		return nil
	}
	if err != unix.EEXIST {
		return &os.PathError{Op: "symlinkat", Path: d.join(linkPath), Err: err}
	}

	existing, err := d.readlink(linkPath)
	if err != nil {
		return err
	}
	if existing == target {
		return nil
	}

	d.logger.Warn("replacing stale unit symlink",
		"path", d.join(linkPath),
		"old_target", existing,
		"new_target", target,
	)
	if err := unix.Unlinkat(d.fd, linkPath, 0); err != nil && err != unix.ENOENT {
		return &os.PathError{Op: "unlinkat", Path: d.join(linkPath), Err: err}
	}
	if err := unix.Symlinkat(target, d.fd, linkPath); err != nil {
		if err != unix.EEXIST {
			return &os.PathError{Op: "symlinkat", Path: d.join(linkPath), Err: err}
		}
		// Another run recreated the link between unlink and symlink.
		if existing, readErr := d.readlink(linkPath); readErr != nil || existing != target {
			return &os.PathError{Op: "symlinkat", Path: d.join(linkPath), Err: err}
		}
	}
	return nil
}

// readlink returns the target of the symlink at name. A non-symlink
// entry yields ErrNotSymlink.
func (d *Dir) readlink(name string) (string, error) {
	var stat unix.Stat_t
	if err := unix.Fstatat(d.fd, name, &stat, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return "", &os.PathError{Op: "fstatat", Path: d.join(name), Err: err}
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFLNK {
		return "", &os.PathError{Op: "symlinkat", Path: d.join(name), Err: ErrNotSymlink}
	}

	buffer := make([]byte, readlinkBufferSize)
	n, err := unix.Readlinkat(d.fd, name, buffer)
	if err != nil {
		return "", &os.PathError{Op: "readlinkat", Path: d.join(name), Err: err}
	}
	return string(buffer[:n]), nil
}

func (d *Dir) join(name string) string {
	return filepath.Join(d.path, name)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
