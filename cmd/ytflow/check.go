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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ytflow/tunnelcore/adapter"
	"github.com/ytflow/tunnelcore/config"
	"github.com/ytflow/tunnelcore/dns"
	"github.com/ytflow/tunnelcore/transport"
	"golang.org/x/net/dns/dnsmessage"
)

var (
	checkResolver string
	checkDomain   string
	checkTimeout  time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Resolve a domain through an adapter",
	Long:  "Load a configuration, the default one if no path is given, and resolve a domain through it over TCP and UDP.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkResolver, "resolver", "1.1.1.1:53", "DNS resolver to query through the adapter")
	checkCmd.Flags().StringVar(&checkDomain, "domain", "www.google.com", "Domain to resolve")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Second, "Timeout of each query")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	var locator string
	if len(args) == 1 {
		locator = args[0]
	} else {
		pointer, store, err := openPointer()
		if err != nil {
			return err
		}
		var ok bool
		locator, ok, err = pointer.Get()
		store.Close()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no default configuration, pass a path")
		}
	}

	cfg, err := config.Resolve(locator)
	if err != nil {
		return err
	}
	factory, err := adapter.Build(cfg)
	if err != nil {
		return err
	}
	q, err := dns.NewQuestion(checkDomain, dnsmessage.TypeA)
	if err != nil {
		return err
	}
	logger.Info("checking adapter", "name", factory.Name(), "kind", factory.Kind(), "resolver", checkResolver)

	tcpErr := probe(cmd.Context(), "TCP", dns.NewTCPRoundTripper(factory, checkResolver), *q)
	udpErr := probe(cmd.Context(), "UDP", dns.NewUDPRoundTripper(transport.PacketListenerDialer{Listener: factory}, checkResolver), *q)
	if errors.Is(udpErr, adapter.ErrPacketUnsupported) {
		udpErr = nil
	}
	return errors.Join(tcpErr, udpErr)
}

func probe(ctx context.Context, network string, rt dns.RoundTripper, q dnsmessage.Question) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	start := time.Now()
	msg, err := rt.RoundTrip(ctx, q)
	if err != nil {
		logger.Warn("query failed", "network", network, "err", err)
		return fmt.Errorf("%s query: %w", network, err)
	}
	logger.Info("query succeeded", "network", network, "rcode", msg.Header.RCode, "answers", len(msg.Answers), "elapsed", time.Since(start))
	return nil
}
