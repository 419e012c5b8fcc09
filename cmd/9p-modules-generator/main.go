// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/vm-modules/lib/config"
	"github.com/bureau-foundation/vm-modules/lib/generator"
	"github.com/bureau-foundation/vm-modules/lib/process"
	"github.com/bureau-foundation/vm-modules/lib/unitdir"
	"github.com/bureau-foundation/vm-modules/lib/version"
)

const usage = "usage: " + generator.Name + " normal-dir early-dir late-dir"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

// usageError reports bad invocation. The usage text has already been
// written by the time it is returned.
type usageError struct {
	reason string
}

func (e *usageError) Error() string { return e.reason }

func (e *usageError) ExitCode() int { return 1 }

func run(args []string, stdout, stderr io.Writer) error {
	var (
		configPath  string
		root        string
		release     string
		debug       bool
		showVersion bool
		help        bool
	)

	flagSet := pflag.NewFlagSet(generator.Name, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.Usage = func() {}
	flagSet.StringVar(&configPath, "config", "", "configuration file (YAML or JSONC; default $"+config.EnvConfig+")")
	flagSet.StringVar(&root, "root", "/", "filesystem root the mount tag probe runs beneath")
	flagSet.StringVar(&release, "release", "", "kernel release to generate units for (default: running kernel)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging (also $"+process.EnvDebug+")")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		printUsage(stderr, flagSet)
		return &usageError{reason: err.Error()}
	}

	if showVersion {
		version.Fprint(stdout, generator.Name)
		return nil
	}
	if help {
		printUsage(stdout, flagSet)
		return nil
	}

	positional := flagSet.Args()
	if len(positional) != 3 {
		fmt.Fprintln(stderr, usage)
		return &usageError{reason: fmt.Sprintf("expected 3 directories, got %d", len(positional))}
	}

	logger := process.NewLogger(debug)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Only the normal-priority directory is written. early-dir and
	// late-dir are part of the calling convention.
	units, err := unitdir.Open(positional[0])
	if err != nil {
		return err
	}
	defer units.Close()
	units.SetLogger(logger)

	report, err := (&generator.Generator{
		Units:   units,
		Config:  cfg,
		Release: release,
		Root:    root,
		Logger:  logger,
	}).Run()
	if err != nil {
		return err
	}

	logger.Info("generated units",
		"release", report.Release,
		"modules_found", report.ModulesFound,
		"units", report.UnitNames(),
		"output", units.Path(),
	)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `%s

Writes mount and service units that expose kernel modules shared over
virtio 9p (mount tag "modules") at /lib/modules/<release>. Only
normal-dir is written.

Flags:
`, usage)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
