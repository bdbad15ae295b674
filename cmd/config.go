// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Glowgrid Project

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the persistent connection flags. Values from the file
// fill in flags the user did not set on the command line.
type fileConfig struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`

	// MQTT bridge settings, used by the bridge command only.
	MQTT struct {
		Broker   string `yaml:"broker"`
		ClientID string `yaml:"client_id"`
		Topic    string `yaml:"topic"`
	} `yaml:"mqtt"`
}

var loadedConfig fileConfig

// applyConfigFile loads --config (or FLOORBUS_CONFIG) and merges it under
// any explicitly set flags.
func applyConfigFile(cmd *cobra.Command) error {
	path := configPath
	if path == "" {
		path = os.Getenv("FLOORBUS_CONFIG")
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &loadedConfig); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	flags := cmd.Root().PersistentFlags()
	if !flags.Changed("port") && loadedConfig.Port != "" {
		portName = loadedConfig.Port
	}
	if !flags.Changed("baud") && loadedConfig.Baud != 0 {
		baudRate = loadedConfig.Baud
	}
	if !flags.Changed("url") && loadedConfig.URL != "" {
		wsURL = loadedConfig.URL
	}
	if !flags.Changed("username") && loadedConfig.Username != "" {
		wsUsername = loadedConfig.Username
	}
	if !flags.Changed("no-ssl-verify") && loadedConfig.NoSSLVerify {
		wsNoSSLVerify = true
	}
	return nil
}
