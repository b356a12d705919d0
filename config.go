// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trsconv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Analysis parameters written to the [General] section of the manifest.
type GeneralConfig struct {
	Threads    int    `toml:"threads"`
	Order      int    `toml:"order"`
	ReturnType string `toml:"return_type"`
	Algorithm  string `toml:"algorithm"`
	Position   string `toml:"position"`
	Round      int    `toml:"round"`
	Bitnum     string `toml:"bitnum"`
	Bytenum    string `toml:"bytenum"`
	Memory     string `toml:"memory"`
	Top        int    `toml:"top"`
}

type Config struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	// Output files are <BaseName>.traces, <BaseName>.input and <BaseName>.config.
	BaseName string `toml:"base_name"`
	// Name of the sample array inside .mat captures.
	Variable string `toml:"variable"`
	// Log a progress line every ProgressEvery captures.
	ProgressEvery int `toml:"progress_every"`
	// Stop after Limit captures. Zero processes every capture.
	Limit int `toml:"limit"`
	// Truncate an existing trace-set instead of refusing to run.
	Overwrite bool `toml:"overwrite"`
	// fsync both blobs after every capture.
	Sync    bool          `toml:"sync"`
	General GeneralConfig `toml:"general"`
}

// Algorithm and Position have no defaults and must be set explicitly.
func DefaultConfig() Config {
	return Config{
		BaseName:      "trace-set.trs",
		Variable:      "trace",
		ProgressEvery: 100,
		General: GeneralConfig{
			Threads:    8,
			Order:      1,
			ReturnType: "double",
			Round:      0,
			Bitnum:     "none",
			Bytenum:    "all",
			Memory:     "4G",
			Top:        20,
		},
	}
}

// Overlays the TOML file at path onto DefaultConfig. The result is not
// validated since command line flags may still override it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	decoder := toml.NewDecoder(f)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.InputDir == "" {
		problems = append(problems, "input_dir is required")
	}
	if c.OutputDir == "" {
		problems = append(problems, "output_dir is required")
	}
	if c.BaseName == "" || strings.ContainsRune(c.BaseName, filepath.Separator) {
		problems = append(problems, fmt.Sprintf("base_name %q must be a plain file name", c.BaseName))
	}
	if c.Variable == "" {
		problems = append(problems, "variable is required")
	}
	if c.ProgressEvery < 0 {
		problems = append(problems, "progress_every must not be negative")
	}
	if c.Limit < 0 {
		problems = append(problems, "limit must not be negative")
	}
	if c.General.Algorithm == "" {
		problems = append(problems, "general.algorithm is required")
	}
	if c.General.Position == "" {
		problems = append(problems, "general.position is required")
	}
	if c.General.Threads <= 0 {
		problems = append(problems, "general.threads must be positive")
	}
	if c.General.Top <= 0 {
		problems = append(problems, "general.top must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) TracesPath() string {
	return filepath.Join(c.OutputDir, c.BaseName+".traces")
}

func (c *Config) InputPath() string {
	return filepath.Join(c.OutputDir, c.BaseName+".input")
}

func (c *Config) ManifestPath() string {
	return filepath.Join(c.OutputDir, c.BaseName+".config")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.OutputDir, "."+c.BaseName+".lock")
}
