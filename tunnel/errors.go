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

package tunnel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ytflow/tunnelcore/network"
)

var (
	// ErrConfigNotSet means no default configuration locator is set.
	ErrConfigNotSet = errors.New("config not set")
	// ErrBind means a local endpoint could not be bound.
	ErrBind = errors.New("failed to bind local endpoint")
	// ErrConnect means the transport or the backend could not be reached. It is only logged.
	ErrConnect = errors.New("failed to connect")
	// ErrOversize means a pending packet did not fit the receive buffer and was dropped.
	ErrOversize = fmt.Errorf("packet does not fit receive buffer: %w", network.ErrMsgSize)

	errReadConfig = errors.New("error reading config file")
)

// terminationReason turns a Connect failure into the text shown to the user.
func terminationReason(err error) string {
	switch {
	case errors.Is(err, ErrConfigNotSet):
		return "Config not set"
	case errors.Is(err, errReadConfig):
		return "Error reading config file: " + detail(err, errReadConfig)
	case errors.Is(err, ErrBind):
		return "Cannot connect to local tunnel: " + detail(err, ErrBind)
	default:
		return err.Error()
	}
}

// detail strips the sentinel prefix from an error built as fmt.Errorf("%w: %w", sentinel, cause).
func detail(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}
