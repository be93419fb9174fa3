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

package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("k", "v1"))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", v)

	require.NoError(t, s.Set("k", "v2"))
	v, _, err = s.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v2", v)

	require.NoError(t, s.Delete("k"))
	_, ok, err = s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting twice is fine.
	require.NoError(t, s.Delete("k"))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestBoltStore(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "settings.db"))
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestBoltStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("ytflow.key", "/tmp/a.json"))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get("ytflow.key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "/tmp/a.json", v)
}

func TestBoltStoreLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = OpenBolt(path)
	require.ErrorIs(t, err, ErrLocked)
}
