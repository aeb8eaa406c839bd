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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/carverauto/serviceradar/pkg/logger"
)

var (
	errAgentConfigMissing  = errors.New("agent config file not found")
	errAgentConfigTrailing = errors.New("agent config has trailing data")
	errInvalidDuration     = errors.New("duration must be a JSON number (nanoseconds) or a parseable string")
)

// Duration unmarshals from either a JSON number (nanoseconds) or a
// parseable duration string ("5s", "1h30m").
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}

	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}

		*d = Duration(tmp)
		return nil
	default:
		return errInvalidDuration
	}
}

// ExternalMetricProviderConfig is one `ExternalMetricProvider` entry
// (§4.2/§6): a named shell command polled on Interval and parsed per Shape.
type ExternalMetricProviderConfig struct {
	Name        string   `json:"name"`
	Command     string   `json:"command"`
	Interval    Duration `json:"interval"`
	Timeout     Duration `json:"timeout"`
	Description string   `json:"description,omitempty"`
	Shape       string   `json:"shape"` // "metric" | "list" | "table" | "structured"

	Table      *ExternalTableConfig      `json:"table,omitempty"`
	Structured *StructuredProviderConfig `json:"structured,omitempty"`
}

// ExternalTableConfig is the §4.2 `ExternalTable` parsing configuration.
type ExternalTableConfig struct {
	Separator       string            `json:"separator,omitempty"` // single byte, default tab
	DecodeEscapes   bool              `json:"decode_escapes,omitempty"`
	MergeSeparators bool              `json:"merge_separators,omitempty"`
	InstanceColumns []string          `json:"instance_columns,omitempty"`
	ColumnTypes     map[string]string `json:"column_types,omitempty"`
	DefaultType     string            `json:"default_type,omitempty"`
}

// StructuredProviderConfig is the §4.2 structured (XML/JSON) provider
// query configuration.
type StructuredProviderConfig struct {
	Format        string `json:"format"` // "xml" | "json" | "regex"
	Query         string `json:"query"`
	Parameterized bool   `json:"parameterized,omitempty"`
}

// ExternalSubagentConfig is one `ExternalSubagent` bridge (§4.3): a
// Unix-domain socket path a sibling process dials for the named bridge.
type ExternalSubagentConfig struct {
	Name         string `json:"name"`
	SocketPath   string `json:"socket_path"`
	PeerUser     string `json:"peer_user,omitempty"` // "*" permits any peer
}

// ActionConfig is one `Action`/`ShellAction` entry (§4.7).
type ActionConfig struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"` // "external" | "shell" | "subagent"
	Command  string   `json:"command,omitempty"`
	Args     []string `json:"args,omitempty"`
	Shell    string   `json:"shell,omitempty"`
	Subagent string   `json:"subagent,omitempty"`
	Timeout  Duration `json:"timeout,omitempty"`
}

// EventUserConfig names an identity authorized on the local
// event-injection channel (§6 `EventUser`, `*` permits any). No module
// in §4 defines an event-injection channel's accept/reject behavior, so
// this is parsed and carried but not yet enforced by any subsystem; see
// DESIGN.md.
type EventUserConfig struct {
	Name string `json:"name"`
}

// FileMonitorConfig configures the file-integrity sweep path list and
// cadence (§6 `FileMonitor.*`). No checker in this core populates
// file_integrity rows from it yet; see pkg/localdb's FileIntegrity* CRUD
// and DESIGN.md.
type FileMonitorConfig struct {
	Paths    []string `json:"paths,omitempty"`
	Interval int      `json:"interval,omitempty"` // seconds, default 21600
}

// AgentConfig is the top-level `cmd/agentd` configuration.
type AgentConfig struct {
	ListenAddr   string `json:"listen_addr"`
	SharedSecret string `json:"shared_secret"`

	ServerPrivateKeyPath string `json:"server_private_key_path"`

	FileStoreRoot string `json:"file_store_root"`
	MasterServer  bool   `json:"master_server,omitempty"`

	LocalDBPath           string `json:"local_db_path"`
	OfflineExpirationDays int    `json:"offline_expiration_days,omitempty"`

	HardwareID string `json:"hardware_id"`

	Providers  []ExternalMetricProviderConfig `json:"providers,omitempty"`
	Subagents  []ExternalSubagentConfig       `json:"subagents,omitempty"`
	Actions    []ActionConfig                 `json:"actions,omitempty"`
	EventUsers []EventUserConfig              `json:"event_users,omitempty"`
	FileMonitor FileMonitorConfig             `json:"file_monitor,omitempty"`

	Logging *logger.Config `json:"logging,omitempty"`
}

// LoadAgentConfig reads and strictly decodes an AgentConfig from path,
// mirroring cmd/agent/main.go's loadConfig (no embedded-default fallback:
// §4.6/§6 give cmd/agentd nothing equivalent to agent's sweep defaults).
func LoadAgentConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", errAgentConfigMissing, path)
		}

		return nil, fmt.Errorf("failed to read agent config: %w", err)
	}

	var cfg AgentConfig

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agent config: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err == nil {
		return nil, fmt.Errorf("failed to parse agent config: %w", errAgentConfigTrailing)
	} else if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse agent config: %w", err)
	}

	if cfg.FileMonitor.Interval == 0 {
		cfg.FileMonitor.Interval = 21600
	}

	return &cfg, nil
}
