// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file at the slash-separated path relative to root,
// creating parent directories as needed.
func WriteFile(t testing.TB, root, path, content string) string {
	t.Helper()
	fullPath := filepath.Join(root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(fullPath), err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", fullPath, err)
	}
	return fullPath
}

// Snapshot walks root and returns one entry per file, directory, and
// symlink, keyed by slash-separated path relative to root:
//
//   - regular files map to their content
//   - directories map to "dir"
//   - symlinks map to "-> <target>"
//
// Symlinks are not followed.
func Snapshot(t testing.TB, root string) map[string]string {
	t.Helper()
	entries := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relative)

		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			entries[key] = "-> " + target
		case entry.IsDir():
			entries[key] = "dir"
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			entries[key] = string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot %s: %v", root, err)
	}
	return entries
}
