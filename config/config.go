// Copyright 2024 The Outline Authors
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

/*
Package config loads adapter configurations.

An adapter configuration is a YAML (or JSON) document with a required `kind` discriminator and a display `name`,
plus fields specific to the kind:

	kind: shadowsocks
	name: Tokyo
	server: example.com
	server_port: 8388
	method: chacha20-ietf-poly1305
	password: secret

[Resolve] reads a document in two phases. The base record is decoded first, independently of the kind-specific
schema, and the same bytes are then decoded strictly into the variant selected by `kind`.

[DefaultPointer] records which configuration is current.
*/
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Kind identifies the proxy protocol of an adapter configuration.
type Kind string

const (
	KindShadowsocks Kind = "shadowsocks"
	KindHTTP        Kind = "http"
	KindTrojan      Kind = "trojan"
)

// Kinds returns the recognized kinds.
func Kinds() []Kind {
	return []Kind{KindShadowsocks, KindHTTP, KindTrojan}
}

// Errors returned by [Resolve]. Test with [errors.Is].
var (
	ErrNotFound    = errors.New("config not found")
	ErrMalformed   = errors.New("malformed config")
	ErrUnknownKind = errors.New("unknown adapter kind")
)

// AdapterConfig is one of [*ShadowsocksConfig], [*HTTPConfig] or [*TrojanConfig].
// Values are immutable once returned by [Resolve].
type AdapterConfig interface {
	// Header returns the fields shared by all kinds.
	Header() *Base
	validate() error
}

// Base holds the fields shared by all kinds.
type Base struct {
	Kind Kind   `yaml:"kind"`
	Name string `yaml:"name"`

	locator string
}

// Header implements [AdapterConfig].
func (b *Base) Header() *Base { return b }

// Locator returns the source the config was read from.
func (b *Base) Locator() string { return b.locator }

func (b *Base) validate() error { return nil }

// Endpoint is the address of a proxy server.
type Endpoint struct {
	Server     string `yaml:"server"`
	ServerPort uint16 `yaml:"server_port"`
}

// Address returns the server address in host:port form.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Server, strconv.Itoa(int(e.ServerPort)))
}

func (e Endpoint) validate() error {
	if e.Server == "" {
		return errors.New("server is required")
	}
	if e.ServerPort == 0 {
		return errors.New("server_port is required")
	}
	return nil
}

// ShadowsocksConfig configures a Shadowsocks adapter.
type ShadowsocksConfig struct {
	Base     `yaml:",inline"`
	Endpoint `yaml:",inline"`
	Method   string `yaml:"method"`
	Password string `yaml:"password"`
}

func (c *ShadowsocksConfig) validate() error {
	if err := c.Endpoint.validate(); err != nil {
		return err
	}
	if c.Method == "" {
		return errors.New("method is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// HTTPConfig configures an HTTP CONNECT adapter. User and Password are optional; when User is set the proxy
// is sent Basic credentials.
type HTTPConfig struct {
	Base     `yaml:",inline"`
	Endpoint `yaml:",inline"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// TLS wraps the connection to the proxy in TLS.
	TLS            bool   `yaml:"tls"`
	SNI            string `yaml:"sni"`
	SkipCertVerify bool   `yaml:"skip_cert_verify"`
}

func (c *HTTPConfig) validate() error {
	if err := c.Endpoint.validate(); err != nil {
		return err
	}
	if c.Password != "" && c.User == "" {
		return errors.New("user is required when password is set")
	}
	return nil
}

// TrojanConfig configures a Trojan adapter.
type TrojanConfig struct {
	Base           `yaml:",inline"`
	Endpoint       `yaml:",inline"`
	Password       string `yaml:"password"`
	SNI            string `yaml:"sni"`
	SkipCertVerify bool   `yaml:"skip_cert_verify"`
}

func (c *TrojanConfig) validate() error {
	if err := c.Endpoint.validate(); err != nil {
		return err
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// newVariant returns an empty config for kind.
func newVariant(kind Kind) (AdapterConfig, error) {
	switch kind {
	case KindShadowsocks:
		return &ShadowsocksConfig{}, nil
	case KindHTTP:
		return &HTTPConfig{}, nil
	case KindTrojan:
		return &TrojanConfig{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
