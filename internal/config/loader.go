// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

var (
	// Global is the process-wide singleton, populated by Load.
	Global Config
	once   sync.Once

	validate = validator.New()
)

// Load ensures Global is populated, creating a default config file on
// first run. Safe to call from multiple goroutines; only the first call
// does real work.
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".scanforge", "scanforge.yaml"), nil
}

func loadInternal() error {
	path, err := defaultConfigPath()
	if err != nil {
		return err
	}
	return loadFrom(path)
}

func loadFrom(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %s failed validation: %w", path, err)
	}

	if err := checkConfigVersion(cfg.Meta.Version); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}

	Global = cfg
	return nil
}

// checkConfigVersion rejects a config file from a newer minor/major schema
// than this binary understands. An empty Meta.Version is treated as
// pre-versioning (v0.0.0) and always accepted, since createDefault only
// started stamping it once CurrentConfigVersion existed.
func checkConfigVersion(fileVersion string) error {
	if fileVersion == "" {
		return nil
	}
	v, want := "v"+fileVersion, "v"+CurrentConfigVersion
	if !semver.IsValid(v) {
		return fmt.Errorf("meta.version %q is not a valid semantic version", fileVersion)
	}
	if semver.Compare(semver.MajorMinor(v), semver.MajorMinor(want)) > 0 {
		return fmt.Errorf("meta.version %q is newer than this binary's schema %q; upgrade scanforge before reusing this config", fileVersion, CurrentConfigVersion)
	}
	return nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create %s: %w", dir, err)
	}
	cfg := DefaultConfig()
	now := time.Now().UnixMilli()
	cfg.Meta.CreatedAt, cfg.Meta.ModifiedAt = now, now

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: failed to marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
