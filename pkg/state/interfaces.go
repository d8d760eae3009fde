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

//go:generate mockgen -destination=mock_state.go -package=state github.com/carverauto/fleetstate/pkg/state Persistence,Notifier,TimeoutProvider

package state

import (
	"context"

	"github.com/carverauto/fleetstate/pkg/models"
)

// Persistence is the durable attribute/time-series store boundary. The
// in-memory store stays authoritative for the owning node; persistence is
// eventually consistent with it.
type Persistence interface {
	// LoadState returns the persisted record for a device, or
	// ErrDeviceStateNotFound when the device has no prior state.
	LoadState(ctx context.Context, deviceID string) (*models.DeviceState, error)

	// LoadPartitionStates bulk-loads all records of a partition for
	// rehydration at ownership-acquisition time.
	LoadPartitionStates(ctx context.Context, partition int32) ([]models.DeviceState, error)

	// SaveState upserts the record's attribute fields.
	SaveState(ctx context.Context, st *models.DeviceState) error

	// SaveStates upserts a batch of records, used when flushing a
	// partition ahead of eviction.
	SaveStates(ctx context.Context, states []models.DeviceState) error

	// RecordTransition appends a time-series point for an active-flag
	// transition of the device.
	RecordTransition(ctx context.Context, st *models.DeviceState, ts int64) error

	// DeleteState removes the persisted record for a deleted device.
	DeleteState(ctx context.Context, deviceID string) error
}

// Notifier publishes state-change signals to cluster messaging, the
// live-subscription channel and, on the inactivity edge, the notification
// rule engine. All methods are fire-and-forget from the core's view.
type Notifier interface {
	PublishStateChange(ctx context.Context, st *models.DeviceState, ts int64) error
	PublishInactivityAlarm(ctx context.Context, st *models.DeviceState, ts int64) error
}

// TimeoutProvider resolves the effective inactivity timeout for a device:
// device override, then profile default, then tenant default, then the
// server-wide default.
type TimeoutProvider interface {
	InactivityTimeoutMs(tenantID, deviceID string) int64
}
