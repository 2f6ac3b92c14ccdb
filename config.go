// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package mqtt

import (
	"log/slog"
	"os"

	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a server configuration file.
//
// Note: struct fields must be public in order for unmarshal to
// correctly populate the data.
type Config struct {
	Server struct {
		// Options contains configurable options for the server.
		Options `yaml:"options"`
	} `yaml:"server"`
}

// OpenConfigFile reads and parses a YAML configuration file at p,
// returning fully-defaulted Options. Fields the file does not set
// retain their documented default (spec.md §6) rather than the zero
// value, via a shallow copier merge onto a defaulted base.
func OpenConfigFile(p string) (*Options, error) {
	if p == "" {
		slog.Default().Debug("no file path provided")
		return nil, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}

	config := new(Config)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	opts := new(Options)
	opts.ensureDefaults()
	if err := copier.CopyWithOption(opts, &config.Server.Options, copier.Option{IgnoreEmpty: true}); err != nil {
		return nil, err
	}

	return opts, nil
}
