// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kegz/primeqa-common/pkg/config"
)

// errInvalidConfig is returned after the failure has been printed.
var errInvalidConfig = errors.New("config validation failed")

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	// Config is the configuration file path. Defaults to --config.
	Config string `arg:"" optional:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	// Format specifies the output format
	Format string `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`

	// PrintConfig prints the expanded configuration
	PrintConfig bool `short:"p" name:"print-config" help:"Print the configuration as YAML with defaults applied and env vars resolved."`
}

type validationResult struct {
	Valid bool   `json:"valid"`
	File  string `json:"file"`
	Error string `json:"error,omitempty"`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(cli *CLI) error {
	path := c.Config
	if path == "" {
		path = cli.Config
	}
	if path == "" {
		return fmt.Errorf("no config file given")
	}

	cfg, err := config.Load(context.Background(), path)
	if err != nil {
		if c.Format == "json" {
			_ = writeJSON(stdout, validationResult{File: path, Error: err.Error()}, true)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, err)
		}
		return errInvalidConfig
	}

	if c.PrintConfig {
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	}

	if c.Format == "json" {
		return writeJSON(stdout, validationResult{Valid: true, File: path}, true)
	}
	_, err = fmt.Fprintf(stdout, "%s: valid\n", path)
	return err
}
