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

package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var defaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Show or change the default adapter configuration",
}

var defaultGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the default configuration locator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pointer, store, err := openPointer()
		if err != nil {
			return err
		}
		defer store.Close()
		locator, ok, err := pointer.Get()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no default configuration")
		}
		fmt.Fprintln(cmd.OutOrStdout(), locator)
		return nil
	},
}

var defaultSetCmd = &cobra.Command{
	Use:   "set <path>",
	Short: "Make a configuration file the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locator, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		pointer, store, err := openPointer()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := pointer.Set(locator); err != nil {
			return err
		}
		logger.Info("default configuration set", "locator", locator)
		return nil
	},
}

var defaultClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the default configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pointer, store, err := openPointer()
		if err != nil {
			return err
		}
		defer store.Close()
		return pointer.Clear()
	},
}

func init() {
	defaultCmd.AddCommand(defaultGetCmd, defaultSetCmd, defaultClearCmd)
	rootCmd.AddCommand(defaultCmd)
}
