// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string        `yaml:"name" validate:"nonzero"`
	Port    int           `yaml:"port" validate:"min=1"`
	Timeout time.Duration `yaml:"timeout"`
	Servers []string      `yaml:"servers"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseMergesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", "name: base\nport: 1\ntimeout: 5s\n")
	override := writeFile(t, dir, "override.yaml", "port: 8080\nservers: [a, b]\n")

	var cfg testConfig
	require.NoError(t, Parse(&cfg, base, override))
	assert.Equal(t, "base", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Servers)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("SLOT_TEST_NAME", "from-env")
	dir := t.TempDir()
	f := writeFile(t, dir, "env.yaml", "name: ${SLOT_TEST_NAME}\nport: 2\n")

	var cfg testConfig
	require.NoError(t, Parse(&cfg, f))
	assert.Equal(t, "from-env", cfg.Name)
}

func TestParseValidation(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "bad.yaml", "port: 0\n")

	var cfg testConfig
	err := Parse(&cfg, f)
	require.Error(t, err)
	verr, ok := err.(ValidationError)
	require.True(t, ok)
	assert.Error(t, verr.ErrForField("Name"))
	assert.Error(t, verr.ErrForField("Port"))
	assert.Contains(t, verr.Error(), "validation failed")
}

func TestParseErrors(t *testing.T) {
	var cfg testConfig
	assert.EqualError(t, Parse(&cfg), "no files to load")
	assert.Error(t, Parse(&cfg, "/does/not/exist.yaml"))

	f := writeFile(t, t.TempDir(), "broken.yaml", "name: [unterminated\n")
	assert.Error(t, Parse(&cfg, f))
}
