// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the modules
// generator.
//
// The generator runs from systemd before most of userspace, usually
// with no configuration at all, so [Default] describes a stock guest:
// modules under /lib/modules, a 9p share tagged "modules", and tools at
// their usual paths. A file can override any of these. It is named by
// the VM_MODULES_CONFIG environment variable (via [Load]) or a
// --config flag (via [LoadFile]). There is no automatic file search.
//
// Files ending in .json or .jsonc are parsed as JSONC (JSON with
// comments and trailing commas); anything else is parsed as YAML.
//
// ${VAR} and ${VAR:-default} patterns in path fields are expanded after
// loading. ${MODULES_ROOT} refers to the configured modules_root.
//
// This package depends on no other internal packages.
package config
