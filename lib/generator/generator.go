// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/bureau-foundation/vm-modules/lib/config"
	"github.com/bureau-foundation/vm-modules/lib/hwinfo"
	"github.com/bureau-foundation/vm-modules/lib/unit"
	"github.com/bureau-foundation/vm-modules/lib/unitdir"
	"github.com/bureau-foundation/vm-modules/lib/unitname"
)

// ErrInvalidRelease is returned for a kernel release that cannot name a
// directory under the modules root.
var ErrInvalidRelease = errors.New("invalid kernel release")

// Generator holds the inputs of one run.
type Generator struct {
	// Units is the output directory, normally the first directory
	// systemd passes to generators. Required.
	Units *unitdir.Dir

	// Config supplies paths and the mount tag. Nil means config.Default().
	Config *config.Config

	// Release overrides the running kernel's release. Empty means read
	// it from uname(2).
	Release string

	// Root is the filesystem root the mount tag pattern is resolved
	// beneath. Empty means "/".
	Root string

	// Logger receives progress messages. Nil discards them.
	Logger *slog.Logger
}

// Report records what a run wrote, in order.
type Report struct {
	// Release is the kernel release the units were generated for.
	Release string

	// ModulesFound is true when a device carried the modules mount tag.
	ModulesFound bool

	// Units lists unit files in the order they were written.
	Units []WrittenUnit

	// Enrollments lists ".wants" links in the order they were created.
	Enrollments []Enrollment
}

// WrittenUnit is one unit file written during a run.
type WrittenUnit struct {
	Name   string
	Digest unitdir.Digest
}

// Enrollment is one "<Target>.wants/<Unit>" link.
type Enrollment struct {
	Target string
	Unit   string
}

// UnitNames returns the names of the written units in order.
func (r *Report) UnitNames() []string {
	names := make([]string, len(r.Units))
	for i, written := range r.Units {
		names[i] = written.Name
	}
	return names
}

// Run probes for the modules share and writes the units. On error the
// returned Report describes what was written before the failure.
func (g *Generator) Run() (*Report, error) {
	report := &Report{}
	if g.Units == nil {
		return report, errors.New("generator: no output directory")
	}

	logger := g.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg := g.Config
	if cfg == nil {
		cfg = config.Default()
	}
	root := g.Root
	if root == "" {
		root = "/"
	}

	release := g.Release
	if release == "" {
		var err error
		release, err = hwinfo.KernelRelease()
		if err != nil {
			return report, fmt.Errorf("reading kernel release: %w", err)
		}
	}
	if release == "." || release == ".." || strings.ContainsAny(release, "/\x00") {
		return report, fmt.Errorf("%w: %q", ErrInvalidRelease, release)
	}
	report.Release = release

	stagingDir := path.Join(cfg.ModulesRoot, release)
	sourceDir := path.Join(stagingDir, "build")

	logger.Debug("probing for modules share",
		"pattern", cfg.MountTagGlob,
		"tag", cfg.MountTag,
		"root", root,
	)
	found, err := hwinfo.FindMountTagFrom(root, cfg.MountTagGlob, cfg.MountTag)
	if err != nil {
		return report, fmt.Errorf("probing for mount tag %q: %w", cfg.MountTag, err)
	}
	report.ModulesFound = found

	out := &emitter{units: g.Units, logger: logger, report: report}

	if found {
		logger.Info("found modules share",
			"tag", cfg.MountTag,
			"release", release,
			"staging", stagingDir,
			"source", sourceDir,
		)
		if err := out.emitModules(cfg, release, stagingDir, sourceDir); err != nil {
			return report, err
		}
	} else {
		logger.Debug("no modules share attached", "tag", cfg.MountTag)
	}

	cleanup := cleanupService(cleanupServiceFields{
		ModulesRoot: cfg.ModulesRoot,
		Tools:       cfg.Tools,
	})
	if err := out.emit(CleanupServiceName, cleanup.File(Name), SysinitTarget); err != nil {
		return report, err
	}

	return report, nil
}

// emitter carries the output directory and report through one Run.
type emitter struct {
	units  *unitdir.Dir
	logger *slog.Logger
	report *Report
}

// emitModules writes the staging mount, the source mount and the
// service that activates the shared tree, in that order.
func (e *emitter) emitModules(cfg *config.Config, release, stagingDir, sourceDir string) error {
	stagingName, err := unitname.Mount(stagingDir)
	if err != nil {
		return fmt.Errorf("naming mount unit for %s: %w", stagingDir, err)
	}
	staging := stagingMount(stagingMountFields{Where: stagingDir})
	if err := e.emit(stagingName, staging.File(Name), LocalFSTarget); err != nil {
		return err
	}

	sourceName, err := unitname.Mount(sourceDir)
	if err != nil {
		return fmt.Errorf("naming mount unit for %s: %w", sourceDir, err)
	}
	source := sourceMount(sourceMountFields{Tag: cfg.MountTag, Where: sourceDir})
	if err := e.emit(sourceName, source.File(Name), LocalFSTarget); err != nil {
		return err
	}

	service := modulesService(modulesServiceFields{
		Release:    release,
		StagingDir: stagingDir,
		SourceDir:  sourceDir,
		Tools:      cfg.Tools,
	})
	return e.emit(ModulesServiceName, service.File(Name), SysinitTarget)
}

// emit writes one unit and enrolls it into target.
func (e *emitter) emit(name string, file unit.File, target string) error {
	digest, err := e.units.WriteUnit(name, file.Render())
	if err != nil {
		return fmt.Errorf("writing unit %s: %w", name, err)
	}
	e.report.Units = append(e.report.Units, WrittenUnit{Name: name, Digest: digest})

	if err := e.units.Enable(target, name); err != nil {
		return fmt.Errorf("enabling %s in %s: %w", name, target, err)
	}
	e.report.Enrollments = append(e.report.Enrollments, Enrollment{Target: target, Unit: name})

	e.logger.Debug("wrote unit",
		"unit", name,
		"wanted_by", target,
		"blake3", digest.String(),
	)
	return nil
}
