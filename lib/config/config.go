// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable Load reads the config path
// from.
const EnvConfig = "VM_MODULES_CONFIG"

// Config is the generator configuration.
type Config struct {
	// ModulesRoot is the module search root. The staging directory is
	// <ModulesRoot>/<release>.
	// Default: /lib/modules
	ModulesRoot string `yaml:"modules_root" json:"modules_root"`

	// MountTag is the 9p mount tag that carries the module tree.
	// Default: modules
	MountTag string `yaml:"mount_tag" json:"mount_tag"`

	// MountTagGlob matches the mount_tag descriptors of attached 9p
	// devices.
	// Default: /sys/bus/virtio/drivers/9pnet_virtio/virtio*/mount_tag
	MountTagGlob string `yaml:"mount_tag_glob" json:"mount_tag_glob"`

	// Tools configures the absolute paths of commands that generated
	// services run.
	Tools ToolsConfig `yaml:"tools" json:"tools"`
}

// ToolsConfig configures command paths used in ExecStart lines.
type ToolsConfig struct {
	// Ln links the module tree into place.
	// Default: /bin/ln
	Ln string `yaml:"ln" json:"ln"`

	// Depmod regenerates module dependency files.
	// Default: /sbin/depmod
	Depmod string `yaml:"depmod" json:"depmod"`

	// Find removes empty module directories.
	// Default: /usr/bin/find
	Find string `yaml:"find" json:"find"`
}

// Default returns the configuration for a stock guest.
func Default() *Config {
	return &Config{
		ModulesRoot:  "/lib/modules",
		MountTag:     "modules",
		MountTagGlob: "/sys/bus/virtio/drivers/9pnet_virtio/virtio*/mount_tag",
		Tools: ToolsConfig{
			Ln:     "/bin/ln",
			Depmod: "/sbin/depmod",
			Find:   "/usr/bin/find",
		},
	}
}

// Load loads the file named by VM_MODULES_CONFIG, or returns Default
// when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfig)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Fields the
// file omits keep their Default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"MODULES_ROOT": "",
	}

	c.ModulesRoot = expandVars(c.ModulesRoot, vars)
	vars["MODULES_ROOT"] = c.ModulesRoot // Update for dependent paths.

	c.MountTagGlob = expandVars(c.MountTagGlob, vars)
	c.Tools.Ln = expandVars(c.Tools.Ln, vars)
	c.Tools.Depmod = expandVars(c.Tools.Depmod, vars)
	c.Tools.Find = expandVars(c.Tools.Find, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if !path.IsAbs(c.ModulesRoot) {
		errs = append(errs, fmt.Errorf("modules_root must be an absolute path, got %q", c.ModulesRoot))
	}

	if c.MountTag == "" {
		errs = append(errs, fmt.Errorf("mount_tag is required"))
	} else if strings.ContainsRune(c.MountTag, 0) {
		errs = append(errs, fmt.Errorf("mount_tag must not contain NUL"))
	}

	if !path.IsAbs(c.MountTagGlob) {
		errs = append(errs, fmt.Errorf("mount_tag_glob must be an absolute path, got %q", c.MountTagGlob))
	} else if _, err := filepath.Match(c.MountTagGlob, ""); err != nil {
		errs = append(errs, fmt.Errorf("mount_tag_glob %q: %w", c.MountTagGlob, err))
	}

	tools := []struct {
		name  string
		value string
	}{
		{"tools.ln", c.Tools.Ln},
		{"tools.depmod", c.Tools.Depmod},
		{"tools.find", c.Tools.Find},
	}
	for _, tool := range tools {
		if !path.IsAbs(tool.value) {
			errs = append(errs, fmt.Errorf("%s must be an absolute path, got %q", tool.name, tool.value))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
