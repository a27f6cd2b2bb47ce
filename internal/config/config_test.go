// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPublicKey, "")
	t.Setenv(EnvSecretKey, "")
	t.Setenv(EnvEndpoint, "")
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
public_key: pk-lf-test
secret_key: sk-lf-test
endpoint: https://langfuse.internal.example
propagate_errors: true
scopes:
  - github.com/tombee/conductor/**
queue_size: 256
timeout: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pk-lf-test", cfg.PublicKey)
	assert.Equal(t, "sk-lf-test", cfg.SecretKey)
	assert.Equal(t, "https://langfuse.internal.example", cfg.Endpoint)
	assert.True(t, cfg.PropagateErrors)
	assert.Equal(t, []string{"github.com/tombee/conductor/**"}, cfg.Scopes)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
public_key: pk-from-file
secret_key: sk-from-file
endpoint: https://file.example
`)

	t.Setenv(EnvPublicKey, "pk-from-env")
	t.Setenv(EnvEndpoint, "https://env.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pk-from-env", cfg.PublicKey)
	assert.Equal(t, "sk-from-file", cfg.SecretKey)
	assert.Equal(t, "https://env.example", cfg.Endpoint)
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPublicKey, "pk-env")
	t.Setenv(EnvSecretKey, "sk-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pk-env", cfg.PublicKey)
	assert.Equal(t, "sk-env", cfg.SecretKey)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPublicKey, "pk-env")
	t.Setenv(EnvSecretKey, "sk-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "pk-env", cfg.PublicKey)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "public_key: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{PublicKey: "pk", SecretKey: "sk"},
		},
		{
			name:    "missing public key",
			cfg:     Config{SecretKey: "sk"},
			wantErr: "public key is required",
		},
		{
			name:    "missing secret key",
			cfg:     Config{PublicKey: "pk"},
			wantErr: "secret key is required",
		},
		{
			name:    "negative queue size",
			cfg:     Config{PublicKey: "pk", SecretKey: "sk", QueueSize: -1},
			wantErr: "queue_size must be >= 0",
		},
		{
			name:    "negative timeout",
			cfg:     Config{PublicKey: "pk", SecretKey: "sk", Timeout: -time.Second},
			wantErr: "timeout must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
