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

// Package ingest consumes transport-layer connectivity events and cluster
// partition assignments, feeding them into the device state service.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
	"github.com/carverauto/fleetstate/pkg/state"
)

var (
	errEmptyDeviceID    = errors.New("connectivity event device_id is empty")
	errUnknownEventType = errors.New("unknown connectivity event type")
)

// DeviceStateManager is the slice of the state service the ingest path
// drives.
type DeviceStateManager interface {
	OnDeviceConnect(ctx context.Context, tenantID, deviceID string, ts int64) error
	OnDeviceActivity(ctx context.Context, tenantID, deviceID string, ts int64) error
	OnDeviceDisconnect(ctx context.Context, tenantID, deviceID string, ts int64) error
	OnDeviceDeleted(ctx context.Context, deviceID string) error
	OnDeviceTimeoutUpdate(ctx context.Context, tenantID, deviceID string, timeoutMs int64) error
	HandlePartitionChange(ctx context.Context, partitions []int32)
}

// Processor decodes connectivity envelopes and applies them to the state
// service.
type Processor struct {
	manager DeviceStateManager
	logger  logger.Logger
}

func NewProcessor(manager DeviceStateManager, log logger.Logger) *Processor {
	return &Processor{manager: manager, logger: log}
}

// Process applies one connectivity event. Malformed events are returned
// as errDropEvent-wrapped errors so the consumer acknowledges and drops
// them; ErrNotOwned propagates so the consumer can NAK for redelivery to
// the owning node.
func (p *Processor) Process(ctx context.Context, payload []byte) error {
	var event models.ConnectivityEvent

	if err := json.Unmarshal(payload, &event); err != nil {
		return dropEvent(fmt.Errorf("failed to decode connectivity event: %w", err))
	}

	if event.DeviceID == "" {
		return dropEvent(errEmptyDeviceID)
	}

	var err error

	switch event.EventType {
	case models.EventDeviceConnected:
		err = p.manager.OnDeviceConnect(ctx, event.TenantID, event.DeviceID, event.Timestamp)
	case models.EventDeviceActivity:
		err = p.manager.OnDeviceActivity(ctx, event.TenantID, event.DeviceID, event.Timestamp)
	case models.EventDeviceDisconnected:
		err = p.manager.OnDeviceDisconnect(ctx, event.TenantID, event.DeviceID, event.Timestamp)
	case models.EventDeviceDeleted:
		err = p.manager.OnDeviceDeleted(ctx, event.DeviceID)
	case models.EventDeviceTimeoutUpdated:
		err = p.manager.OnDeviceTimeoutUpdate(ctx, event.TenantID, event.DeviceID, event.TimeoutMs)
	default:
		return dropEvent(fmt.Errorf("%w: %q", errUnknownEventType, event.EventType))
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrNotOwned):
		// Redelivery gives the cluster a chance to route the event to
		// the node that picked up the partition.
		return err
	case errors.Is(err, state.ErrInvalidTimestamp), errors.Is(err, state.ErrInvalidTimeout),
		errors.Is(err, state.ErrDeviceStateNotFound):
		return dropEvent(err)
	default:
		return err
	}
}

// errDropEvent marks events that must be acknowledged and discarded
// rather than redelivered.
var errDropEvent = errors.New("dropping event")

func dropEvent(err error) error {
	return fmt.Errorf("%w: %w", errDropEvent, err)
}

// IsDrop reports whether the processing error calls for ack-and-discard.
func IsDrop(err error) bool {
	return errors.Is(err, errDropEvent)
}
