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

//go:build linux

package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/ytflow/tunnelcore/host/tunhost"
	"github.com/ytflow/tunnelcore/tunnel"
	"golang.org/x/sys/unix"
)

var (
	tunName      string
	routingTable int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tunnel on a TUN device",
	Long:  "Run the tunnel with the default configuration on a new TUN device. Needs CAP_NET_ADMIN.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pointer, store, err := openPointer()
		if err != nil {
			return err
		}
		defer store.Close()

		plugin, err := tunnel.New(pointer, tunnel.WithLogger(logger))
		if err != nil {
			return err
		}
		h, err := tunhost.New(tunhost.Config{Name: tunName, RoutingTable: routingTable, Logger: logger})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM, unix.SIGHUP)
		defer stop()
		return h.Run(ctx, plugin)
	},
}

func init() {
	runCmd.Flags().StringVar(&tunName, "tun", tunhost.DefaultName, "Name of the TUN device")
	runCmd.Flags().IntVar(&routingTable, "table", tunhost.DefaultRoutingTable, "Routing table for tunnel routes")
	rootCmd.AddCommand(runCmd)
}
