/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgentConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agentd.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadAgentConfigParsesProvidersAndDurations(t *testing.T) {
	path := writeAgentConfig(t, `{
		"listen_addr": ":4700",
		"shared_secret": "s3cret",
		"server_private_key_path": "/etc/serviceradar/agentd.key",
		"file_store_root": "/var/lib/serviceradar/files",
		"local_db_path": "/var/lib/serviceradar/agentd.db",
		"hardware_id": "host-1",
		"providers": [
			{"name": "Disk.Free", "command": "df -k /", "interval": "30s", "timeout": "5s", "shape": "metric"}
		],
		"subagents": [
			{"name": "netsnmp", "socket_path": "/run/serviceradar/netsnmp.sock", "peer_user": "*"}
		],
		"actions": [
			{"name": "restart", "kind": "shell", "shell": "systemctl restart nginx", "timeout": 10000000000}
		]
	}`)

	cfg, err := LoadAgentConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":4700", cfg.ListenAddr)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, time.Duration(30*time.Second), time.Duration(cfg.Providers[0].Interval))
	assert.Equal(t, time.Duration(5*time.Second), time.Duration(cfg.Providers[0].Timeout))
	require.Len(t, cfg.Subagents, 1)
	assert.Equal(t, "netsnmp", cfg.Subagents[0].Name)
	require.Len(t, cfg.Actions, 1)
	assert.Equal(t, time.Duration(10*time.Second), time.Duration(cfg.Actions[0].Timeout))
}

func TestLoadAgentConfigMissingFile(t *testing.T) {
	_, err := LoadAgentConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errAgentConfigMissing)
}

func TestLoadAgentConfigRejectsUnknownFields(t *testing.T) {
	path := writeAgentConfig(t, `{"listen_addr": ":4700", "bogus_field": true}`)

	_, err := LoadAgentConfig(path)
	require.Error(t, err)
}

func TestLoadAgentConfigRejectsTrailingData(t *testing.T) {
	path := writeAgentConfig(t, `{"listen_addr": ":4700"}{"listen_addr": ":9999"}`)

	_, err := LoadAgentConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errAgentConfigTrailing)
}
