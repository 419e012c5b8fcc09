// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"path"

	"github.com/bureau-foundation/vm-modules/lib/config"
	"github.com/bureau-foundation/vm-modules/lib/unit"
)

// Name identifies this generator in the header of every unit it writes.
const Name = "9p-modules-generator"

// Fixed unit and target names.
const (
	ModulesServiceName = "9p-modules.service"
	CleanupServiceName = "9p-modules-cleanup.service"

	LocalFSTarget = "local-fs.target"
	SysinitTarget = "sysinit.target"
)

// stagingMountFields parameterizes the tmpfs that holds the module
// directory for the running kernel.
type stagingMountFields struct {
	Where string
}

func stagingMount(fields stagingMountFields) unit.Mount {
	return unit.Mount{
		Unit: unit.Options{
			Description: "Temporary Modules Directory",
			Conflicts:   []string{"umount.target"},
			After:       []string{"systemd-remount-fs.service"},
			Before:      []string{LocalFSTarget, "umount.target"},
		},
		What:    "tmpfs",
		Where:   fields.Where,
		Type:    "tmpfs",
		Options: []string{"mode=755", "strictatime"},
	}
}

// sourceMountFields parameterizes the read-only 9p mount of the share.
// Where lies beneath the staging mount, so systemd orders it after that
// mount from the paths alone.
type sourceMountFields struct {
	Tag   string
	Where string
}

func sourceMount(fields sourceMountFields) unit.Mount {
	return unit.Mount{
		Unit: unit.Options{
			Description: "9p Modules Build Directory",
			Conflicts:   []string{"umount.target"},
			Before:      []string{LocalFSTarget, "umount.target"},
		},
		What:    fields.Tag,
		Where:   fields.Where,
		Type:    "9p",
		Options: []string{"trans=virtio", "ro"},
	}
}

// modulesServiceFields parameterizes the service that links the shared
// build tree into the staging directory.
type modulesServiceFields struct {
	Release    string
	StagingDir string
	SourceDir  string
	Tools      config.ToolsConfig
}

func modulesService(fields modulesServiceFields) unit.Service {
	// Link targets are relative to the staging directory so they keep
	// resolving inside the tmpfs.
	source := path.Base(fields.SourceDir)
	return unit.Service{
		Unit: unit.Options{
			Description:       "Sets up modules mounted via 9p",
			RequiresMountsFor: []string{fields.StagingDir, fields.SourceDir},
			Before: []string{
				SysinitTarget,
				"systemd-modules-load.service",
				"systemd-udevd.service",
				"kmod-static-nodes.service",
			},
		},
		ExecStart: [][]string{
			{fields.Tools.Ln, "-s", source + "/modules.order", path.Join(fields.StagingDir, "modules.order")},
			{fields.Tools.Ln, "-s", source + "/modules.builtin", path.Join(fields.StagingDir, "modules.builtin")},
			{fields.Tools.Ln, "-s", source, path.Join(fields.StagingDir, "kernel")},
			{fields.Tools.Depmod, fields.Release},
		},
	}
}

// cleanupServiceFields parameterizes the service that prunes empty
// per-release directories from the module search root.
type cleanupServiceFields struct {
	ModulesRoot string
	Tools       config.ToolsConfig
}

func cleanupService(fields cleanupServiceFields) unit.Service {
	return unit.Service{
		Unit: unit.Options{
			Description: "Cleans up empty module directories",
			After:       []string{LocalFSTarget},
			Before:      []string{SysinitTarget},
		},
		ExecStart: [][]string{
			{fields.Tools.Find, fields.ModulesRoot, "-mindepth", "1", "-maxdepth", "1", "-type", "d", "-empty", "-delete"},
		},
	}
}
