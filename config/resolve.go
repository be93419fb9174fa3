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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Resolve reads the adapter configuration stored at locator, a file path.
//
// It returns an error wrapping [ErrNotFound] if the file cannot be read, [ErrMalformed] if the document or the
// kind-specific fields cannot be decoded, and [ErrUnknownKind] if `kind` is not one of [Kinds].
func Resolve(locator string) (AdapterConfig, error) {
	data, err := os.ReadFile(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Header().locator = locator
	return cfg, nil
}

// Parse decodes an adapter configuration document. See [Resolve] for the errors returned.
func Parse(data []byte) (AdapterConfig, error) {
	var base Base
	if err := decodeBase(data, &base); err != nil {
		return nil, err
	}
	if base.Kind == "" {
		return nil, fmt.Errorf("%w: kind is required", ErrMalformed)
	}
	cfg, err := newVariant(base.Kind)
	if err != nil {
		return nil, err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid %v config: %w", ErrMalformed, base.Kind, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid %v config: %w", ErrMalformed, base.Kind, err)
	}
	return cfg, nil
}

// decodeBase decodes only the common fields, ignoring everything else.
func decodeBase(data []byte, base *Base) error {
	var node yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty document", ErrMalformed)
		}
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w: document is not a mapping", ErrMalformed)
	}
	if err := node.Decode(base); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}
