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

// Package localdb is the core's local embedded database layer (§4.6): a
// single file-backed store holding the notification spool, file integrity
// baselines, a small registry, and the policy/config surface pushed down
// from a server, so a restart does not require a full repush.
//
// Opening the database never fails the agent outright. A failure to open
// or upgrade the schema registers a problem (pkg/problems) and the agent
// continues without local-DB-dependent features such as offline
// notification spooling.
package localdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/problems"

	_ "github.com/mattn/go-sqlite3"
)

const (
	problemOpen    = "localdb-open"
	problemUpgrade = "localdb-upgrade"
)

// expectedTables is every table Open verifies exists after migration
// before handing the database back to the caller.
var expectedTables = []string{
	"metadata",
	"agent_policy",
	"dc_config",
	"dc_queue",
	"dc_proxy",
	"dc_schedules",
	"dc_snmp_table_columns",
	"dc_snmp_targets",
	"device_decoder_map",
	"file_integrity",
	"logwatch_files",
	"notification_data",
	"notification_servers",
	"registry",
	"user_agent_notifications",
	"zone_config",
}

// DB is a handle to the local embedded database.
type DB struct {
	sql *sql.DB
	log logger.Logger
}

// Open opens (creating if absent) the sqlite file at path, runs the
// schema-version bootstrap and upgrade chain, and verifies every expected
// table exists. On any failure it registers a problem on probs and returns
// a non-nil error; the caller must treat this as non-fatal and proceed
// without local-DB-dependent features.
func Open(ctx context.Context, path string, probs *problems.Registry, log logger.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		probs.Register(problemOpen, problems.SeverityMajor, err.Error())
		return nil, fmt.Errorf("opening local database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		probs.Register(problemOpen, problems.SeverityMajor, err.Error())

		return nil, fmt.Errorf("pinging local database: %w", err)
	}

	// The local file is single-writer; serialize to avoid SQLITE_BUSY
	// from the sender, resync, and housekeeping tasks racing each other.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB, log: log}

	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		probs.Register(problemUpgrade, problems.SeverityMajor, err.Error())

		return nil, fmt.Errorf("upgrading local database schema: %w", err)
	}

	if err := db.verifySchema(ctx); err != nil {
		_ = sqlDB.Close()
		probs.Register(problemOpen, problems.SeverityMajor, err.Error())

		return nil, fmt.Errorf("verifying local database schema: %w", err)
	}

	probs.Clear(problemOpen)
	probs.Clear(problemUpgrade)

	return db, nil
}

// Close releases the underlying sqlite handle.
func (db *DB) Close() error {
	return db.sql.Close()
}

func (db *DB) verifySchema(ctx context.Context) error {
	for _, table := range expectedTables {
		row := db.sql.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)

		var name string
		if err := row.Scan(&name); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("expected table %q not found after migration", table)
			}

			return fmt.Errorf("checking table %q: %w", table, err)
		}
	}

	return nil
}
