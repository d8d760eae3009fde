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

// Package db persists device state attributes and the active-flag time
// series to a CNPG/Timescale cluster.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
	"github.com/carverauto/fleetstate/pkg/state"
)

// Pool is the subset of pgxpool.Pool the store needs; narrowed so tests
// can substitute fakes.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// StateStore implements state.Persistence on top of CNPG.
type StateStore struct {
	pool   Pool
	logger logger.Logger
}

func NewStateStore(pool Pool, log logger.Logger) *StateStore {
	return &StateStore{pool: pool, logger: log}
}

const (
	createStateTableSQL = `
		CREATE TABLE IF NOT EXISTS device_states (
			device_id                  TEXT PRIMARY KEY,
			tenant_id                  TEXT NOT NULL,
			partition                  INTEGER NOT NULL,
			active                     BOOLEAN NOT NULL DEFAULT FALSE,
			last_connect_time          BIGINT NOT NULL DEFAULT 0,
			last_disconnect_time       BIGINT NOT NULL DEFAULT 0,
			last_activity_time         BIGINT NOT NULL DEFAULT 0,
			last_inactivity_alarm_time BIGINT NOT NULL DEFAULT 0,
			inactivity_timeout_ms      BIGINT NOT NULL DEFAULT 0,
			updated_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	createStateIndexSQL = `
		CREATE INDEX IF NOT EXISTS idx_device_states_partition
		ON device_states (partition)`

	createTransitionsTableSQL = `
		CREATE TABLE IF NOT EXISTS device_state_transitions (
			device_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			active    BOOLEAN NOT NULL,
			ts        BIGINT NOT NULL,
			PRIMARY KEY (device_id, ts)
		)`

	upsertStateSQL = `
		INSERT INTO device_states (
			device_id, tenant_id, partition, active,
			last_connect_time, last_disconnect_time, last_activity_time,
			last_inactivity_alarm_time, inactivity_timeout_ms, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (device_id) DO UPDATE SET
			tenant_id                  = EXCLUDED.tenant_id,
			partition                  = EXCLUDED.partition,
			active                     = EXCLUDED.active,
			last_connect_time          = EXCLUDED.last_connect_time,
			last_disconnect_time       = EXCLUDED.last_disconnect_time,
			last_activity_time         = EXCLUDED.last_activity_time,
			last_inactivity_alarm_time = EXCLUDED.last_inactivity_alarm_time,
			inactivity_timeout_ms      = EXCLUDED.inactivity_timeout_ms,
			updated_at                 = now()`

	selectStateSQL = `
		SELECT device_id, tenant_id, partition, active,
			last_connect_time, last_disconnect_time, last_activity_time,
			last_inactivity_alarm_time, inactivity_timeout_ms
		FROM device_states
		WHERE device_id = $1`

	selectPartitionStatesSQL = `
		SELECT device_id, tenant_id, partition, active,
			last_connect_time, last_disconnect_time, last_activity_time,
			last_inactivity_alarm_time, inactivity_timeout_ms
		FROM device_states
		WHERE partition = $1`

	deleteStateSQL = `DELETE FROM device_states WHERE device_id = $1`

	insertTransitionSQL = `
		INSERT INTO device_state_transitions (device_id, tenant_id, active, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id, ts) DO UPDATE SET active = EXCLUDED.active`
)

// EnsureSchema creates the state tables when they do not exist yet.
func (s *StateStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createStateTableSQL, createStateIndexSQL, createTransitionsTableSQL} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure device state schema: %w", err)
		}
	}

	return nil
}

// LoadState returns the persisted record for a device.
func (s *StateStore) LoadState(ctx context.Context, deviceID string) (*models.DeviceState, error) {
	row := s.pool.QueryRow(ctx, selectStateSQL, deviceID)

	st, err := scanState(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, state.ErrDeviceStateNotFound
		}

		return nil, classify(err, "failed to load device state")
	}

	return st, nil
}

// LoadPartitionStates bulk-loads every record of a partition for
// rehydration.
func (s *StateStore) LoadPartitionStates(ctx context.Context, partition int32) ([]models.DeviceState, error) {
	rows, err := s.pool.Query(ctx, selectPartitionStatesSQL, partition)
	if err != nil {
		return nil, classify(err, "failed to query partition states")
	}
	defer rows.Close()

	var states []models.DeviceState

	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, classify(err, "failed to scan device state row")
		}

		states = append(states, *st)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to read partition states")
	}

	return states, nil
}

// SaveState upserts one record, retrying transient failures with backoff.
func (s *StateStore) SaveState(ctx context.Context, st *models.DeviceState) error {
	err := withRetry(ctx, func() error {
		_, execErr := s.pool.Exec(ctx, upsertStateSQL,
			st.DeviceID, st.TenantID, st.Partition, st.Active,
			st.LastConnectTime, st.LastDisconnectTime, st.LastActivityTime,
			st.LastInactivityAlarmTime, st.InactivityTimeoutMs)

		return execErr
	})
	if err != nil {
		return classify(err, "failed to save device state")
	}

	return nil
}

// SaveStates upserts a batch of records in one round trip.
func (s *StateStore) SaveStates(ctx context.Context, states []models.DeviceState) error {
	if len(states) == 0 {
		return nil
	}

	err := withRetry(ctx, func() error {
		batch := &pgx.Batch{}

		for i := range states {
			st := &states[i]
			batch.Queue(upsertStateSQL,
				st.DeviceID, st.TenantID, st.Partition, st.Active,
				st.LastConnectTime, st.LastDisconnectTime, st.LastActivityTime,
				st.LastInactivityAlarmTime, st.InactivityTimeoutMs)
		}

		results := s.pool.SendBatch(ctx, batch)
		defer func() { _ = results.Close() }()

		for range states {
			if _, execErr := results.Exec(); execErr != nil {
				return execErr
			}
		}

		return nil
	})
	if err != nil {
		return classify(err, "failed to save device state batch")
	}

	return nil
}

// RecordTransition appends a time-series point for an active-flag change.
func (s *StateStore) RecordTransition(ctx context.Context, st *models.DeviceState, ts int64) error {
	err := withRetry(ctx, func() error {
		_, execErr := s.pool.Exec(ctx, insertTransitionSQL, st.DeviceID, st.TenantID, st.Active, ts)
		return execErr
	})
	if err != nil {
		return classify(err, "failed to record state transition")
	}

	return nil
}

// DeleteState removes a deleted device's persisted record.
func (s *StateStore) DeleteState(ctx context.Context, deviceID string) error {
	err := withRetry(ctx, func() error {
		_, execErr := s.pool.Exec(ctx, deleteStateSQL, deviceID)
		return execErr
	})
	if err != nil {
		return classify(err, "failed to delete device state")
	}

	return nil
}

// scanState maps one row onto a record.
func scanState(row pgx.Row) (*models.DeviceState, error) {
	var st models.DeviceState

	err := row.Scan(
		&st.DeviceID, &st.TenantID, &st.Partition, &st.Active,
		&st.LastConnectTime, &st.LastDisconnectTime, &st.LastActivityTime,
		&st.LastInactivityAlarmTime, &st.InactivityTimeoutMs,
	)
	if err != nil {
		return nil, err
	}

	return &st, nil
}

// classify wraps transient failures as ErrPersistenceUnavailable so
// callers can tell them from permanent ones.
func classify(err error, msg string) error {
	if isTransient(err) {
		return fmt.Errorf("%w: %s: %w", state.ErrPersistenceUnavailable, msg, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
