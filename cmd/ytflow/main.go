// Copyright 2023 The Outline Authors
// Copyright 2026 The YTFlow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command ytflow manages the default adapter configuration and runs the tunnel.
//
//	ytflow default set ./tokyo.yaml
//	ytflow check
//	sudo ytflow run -v
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/ytflow/tunnelcore/config"
	"github.com/ytflow/tunnelcore/settings"
	"golang.org/x/term"
)

var (
	verbose      bool
	settingsPath string

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:           "ytflow",
	Short:         "YTFlow tunnel core",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(tint.NewHandler(
			os.Stderr,
			&tint.Options{NoColor: !term.IsTerminal(int(os.Stderr.Fd())), Level: level},
		))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", defaultSettingsPath(), "Settings database")
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ytflow-settings.db"
	}
	return filepath.Join(dir, "ytflow", "settings.db")
}

// openPointer opens the settings database. The returned store must be closed.
func openPointer() (*config.DefaultPointer, *settings.BoltStore, error) {
	store, err := settings.OpenBolt(settingsPath)
	if err != nil {
		return nil, nil, err
	}
	return config.NewDefaultPointer(store), store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
