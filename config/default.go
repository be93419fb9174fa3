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
	"fmt"

	"github.com/ytflow/tunnelcore/settings"
)

// DefaultPathKey is the settings key holding the locator of the current configuration.
const DefaultPathKey = "ytflow.tunnel.config.default_path"

// DefaultPointer records which configuration locator is current.
//
// The pointer starts absent. It only changes through Set and Clear; connecting only reads it.
// Set does not validate the locator, validation happens when the config is resolved.
type DefaultPointer struct {
	store settings.Store
}

// NewDefaultPointer creates a [DefaultPointer] persisted in store.
func NewDefaultPointer(store settings.Store) *DefaultPointer {
	return &DefaultPointer{store: store}
}

// Get returns the current locator. The boolean result is false when no locator is set.
func (p *DefaultPointer) Get() (string, bool, error) {
	v, ok, err := p.store.Get(DefaultPathKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to read default config: %w", err)
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Set makes locator the current configuration.
func (p *DefaultPointer) Set(locator string) error {
	if err := p.store.Set(DefaultPathKey, locator); err != nil {
		return fmt.Errorf("failed to set default config: %w", err)
	}
	return nil
}

// Clear removes the current locator.
func (p *DefaultPointer) Clear() error {
	if err := p.store.Delete(DefaultPathKey); err != nil {
		return fmt.Errorf("failed to clear default config: %w", err)
	}
	return nil
}
