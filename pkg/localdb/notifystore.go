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

package localdb

import (
	"context"
	"time"

	"github.com/carverauto/serviceradar/pkg/notify"
)

// Notify satisfies pkg/notify.Store against the notification_data and
// notification_servers tables. DB itself does not implement the interface
// directly so the notify-specific surface stays grouped and easy to find.
func (db *DB) Notify() notify.Store {
	return (*notifyStore)(db)
}

type notifyStore DB

func (s *notifyStore) KnownServerIDs(ctx context.Context) ([]uint64, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT server_id FROM notification_servers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64

	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *notifyStore) InsertNotification(ctx context.Context, serverID, id uint64, data []byte) error {
	_, err := s.sql.ExecContext(ctx, `
		INSERT INTO notification_data (server_id, id, serialized_data) VALUES (?, ?, ?)
		ON CONFLICT(server_id, id) DO UPDATE SET serialized_data = excluded.serialized_data
	`, serverID, id, data)

	return err
}

func (s *notifyStore) FetchNotifications(ctx context.Context, serverID uint64, limit int) ([]notify.StoredNotification, error) {
	rows, err := s.sql.QueryContext(ctx, `
		SELECT id, serialized_data FROM notification_data
		WHERE server_id = ? ORDER BY id ASC LIMIT ?
	`, serverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.StoredNotification

	for rows.Next() {
		var n notify.StoredNotification
		if err := rows.Scan(&n.ID, &n.Data); err != nil {
			return nil, err
		}

		out = append(out, n)
	}

	return out, rows.Err()
}

func (s *notifyStore) DeleteNotificationsUpTo(ctx context.Context, serverID, id uint64) error {
	_, err := s.sql.ExecContext(ctx, `
		DELETE FROM notification_data WHERE server_id = ? AND id <= ?
	`, serverID, id)

	return err
}

func (s *notifyStore) UpsertServerLastConnection(ctx context.Context, serverID uint64, at time.Time) error {
	_, err := s.sql.ExecContext(ctx, `
		INSERT INTO notification_servers (server_id, last_connection_time) VALUES (?, ?)
		ON CONFLICT(server_id) DO UPDATE SET last_connection_time = excluded.last_connection_time
	`, serverID, at.Unix())

	return err
}

func (s *notifyStore) ExpiredServers(ctx context.Context, olderThan time.Time) ([]uint64, error) {
	rows, err := s.sql.QueryContext(ctx, `
		SELECT server_id FROM notification_servers WHERE last_connection_time < ?
	`, olderThan.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64

	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *notifyStore) DeleteServer(ctx context.Context, serverID uint64) error {
	if _, err := s.sql.ExecContext(ctx, `DELETE FROM notification_data WHERE server_id = ?`, serverID); err != nil {
		return err
	}

	_, err := s.sql.ExecContext(ctx, `DELETE FROM notification_servers WHERE server_id = ?`, serverID)

	return err
}

func (s *notifyStore) Vacuum(ctx context.Context) error {
	_, err := s.sql.ExecContext(ctx, `VACUUM`)
	return err
}
