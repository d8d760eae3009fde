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

// Package state tracks per-device presence for a multi-tenant fleet: an
// in-memory, partition-scoped state store, the connect/activity/disconnect
// event path, and the periodic inactivity sweep that raises a one-shot
// signal when a device goes silent past its timeout.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
)

// Service is the device-state event processor. All mutations of a single
// device are serialized through the store; side effects (persistence,
// notifications) run asynchronously on a bounded worker pool and never
// block the caller.
type Service struct {
	store       *Store
	persistence Persistence
	notifier    Notifier
	timeouts    TimeoutProvider
	pool        *workerPool
	logger      logger.Logger

	sweepInterval time.Duration
	batchSize     int

	// nowMs is swappable so sweep arithmetic is testable.
	nowMs func() int64

	bgCtx    context.Context
	bgCancel context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
	loopDone chan struct{}
}

// NewService wires the event processor. The store's partition count and
// the pool size come from cfg; persistence, notifier and timeout
// resolution are injected.
func NewService(
	cfg *models.StateServiceConfig,
	persistence Persistence,
	notifier Notifier,
	timeouts TimeoutProvider,
	log logger.Logger,
) *Service {
	bgCtx, bgCancel := context.WithCancel(context.Background())

	return &Service{
		store:         NewStore(cfg.PartitionCount),
		persistence:   persistence,
		notifier:      notifier,
		timeouts:      timeouts,
		pool:          newWorkerPool(cfg.WorkerPoolSize, log),
		logger:        log,
		sweepInterval: time.Duration(cfg.SweepInterval),
		batchSize:     cfg.PersistenceBatchSize,
		nowMs:         func() int64 { return time.Now().UnixMilli() },
		bgCtx:         bgCtx,
		bgCancel:      bgCancel,
		done:          make(chan struct{}),
		loopDone:      make(chan struct{}),
	}
}

// Store exposes the underlying state store for read-side consumers.
func (s *Service) Store() *Store {
	return s.store
}

// OnDeviceConnect records a transport session establishment. It never
// changes the active flag by itself.
func (s *Service) OnDeviceConnect(_ context.Context, tenantID, deviceID string, ts int64) error {
	if ts <= 0 {
		return ErrInvalidTimestamp
	}

	snapshot, version, changed, err := s.store.Apply(deviceID,
		s.seedRecord(tenantID, deviceID),
		func(st *models.DeviceState) bool {
			if ts <= st.LastConnectTime {
				return false
			}

			st.LastConnectTime = ts

			return true
		})
	if err != nil {
		return err
	}

	if changed {
		s.persistAsync(snapshot, version)
	}

	return nil
}

// OnDeviceActivity records telemetry or attribute activity. An inactive
// device flips back to active, its alarm marker is cleared so the next
// silence period can signal again, and the false-to-true edge is
// broadcast exactly once.
func (s *Service) OnDeviceActivity(_ context.Context, tenantID, deviceID string, ts int64) error {
	if ts <= 0 {
		return ErrInvalidTimestamp
	}

	var becameActive bool

	snapshot, version, changed, err := s.store.Apply(deviceID,
		s.seedRecord(tenantID, deviceID),
		func(st *models.DeviceState) bool {
			becameActive = false
			mutated := false

			if ts > st.LastActivityTime {
				st.LastActivityTime = ts
				mutated = true
			}

			if !st.Active {
				st.Active = true
				st.LastInactivityAlarmTime = 0
				becameActive = true
				mutated = true
			}

			return mutated
		})
	if err != nil {
		return err
	}

	if changed {
		s.persistAsync(snapshot, version)
	}

	if becameActive {
		s.notifyStateChange(snapshot, ts, false)
	}

	return nil
}

// OnDeviceDisconnect records a transport session end. The device stays
// active while its last activity is within the timeout; "active" tracks
// activity recency, not connection liveness.
func (s *Service) OnDeviceDisconnect(_ context.Context, tenantID, deviceID string, ts int64) error {
	if ts <= 0 {
		return ErrInvalidTimestamp
	}

	snapshot, version, changed, err := s.store.Apply(deviceID, nil,
		func(st *models.DeviceState) bool {
			if ts <= st.LastDisconnectTime {
				return false
			}

			st.LastDisconnectTime = ts

			return true
		})
	if err != nil {
		return err
	}

	if changed {
		s.persistAsync(snapshot, version)
	}

	return nil
}

// OnDeviceDeleted evicts the device from memory and removes its
// persisted state.
func (s *Service) OnDeviceDeleted(_ context.Context, deviceID string) error {
	if !s.store.IsOwned(s.store.PartitionFor(deviceID)) {
		return ErrNotOwned
	}

	if _, existed := s.store.Remove(deviceID); !existed {
		return nil
	}

	s.pool.Submit(s.bgCtx, func(taskCtx context.Context) {
		if err := s.persistence.DeleteState(taskCtx, deviceID); err != nil {
			s.logger.Error().Err(err).Str("device_id", deviceID).Msg("Failed to delete persisted device state")
		}
	})

	return nil
}

// OnDeviceTimeoutUpdate applies a new inactivity timeout to the device
// and immediately re-evaluates expiry, so shrinking the timeout can
// deactivate a silent device without waiting for the next sweep.
func (s *Service) OnDeviceTimeoutUpdate(_ context.Context, tenantID, deviceID string, timeoutMs int64) error {
	if timeoutMs <= 0 {
		return ErrInvalidTimeout
	}

	now := s.nowMs()

	var outcome expiryOutcome

	snapshot, version, changed, err := s.store.Apply(deviceID,
		s.seedRecord(tenantID, deviceID),
		func(st *models.DeviceState) bool {
			mutated := st.InactivityTimeoutMs != timeoutMs
			st.InactivityTimeoutMs = timeoutMs

			outcome = expireRecord(st, now)

			return mutated || outcome.deactivated
		})
	if err != nil {
		return err
	}

	if changed {
		s.persistAsync(snapshot, version)
	}

	if outcome.deactivated {
		s.notifyStateChange(snapshot, now, outcome.alarmed)
	}

	return nil
}

// Start launches the inactivity sweeper. Stop shuts it down and drains
// pending side effects.
func (s *Service) Start(ctx context.Context) {
	go s.sweepLoop(ctx)
}

// Stop halts the sweeper, drains the worker pool and flushes every
// record that still carries unpersisted mutations. The context bounds
// the whole shutdown, drain included.
func (s *Service) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.done)
		<-s.loopDone

		s.pool.Drain(ctx)
		s.flushDirty(ctx)
		s.bgCancel()
	})
}

// seedRecord builds the initial record for a device seen for the first
// time, with its timeout resolved through the provider chain.
func (s *Service) seedRecord(tenantID, deviceID string) SeedFunc {
	return func() models.DeviceState {
		return models.DeviceState{
			TenantID:            tenantID,
			DeviceID:            deviceID,
			Partition:           s.store.PartitionFor(deviceID),
			InactivityTimeoutMs: s.timeouts.InactivityTimeoutMs(tenantID, deviceID),
		}
	}
}

type expiryOutcome struct {
	deactivated bool
	alarmed     bool
}

// expireRecord applies the inactivity transition to a record under its
// lock: deactivate when the silence exceeds the timeout, and mark the
// alarm at most once per silence period. A record with no activity
// history is never eligible.
func expireRecord(st *models.DeviceState, nowMs int64) expiryOutcome {
	var out expiryOutcome

	if !st.Active || !st.Expired(nowMs) {
		return out
	}

	st.Active = false
	out.deactivated = true

	if st.LastInactivityAlarmTime == 0 && st.LastActivityTime > 0 {
		st.LastInactivityAlarmTime = nowMs
		out.alarmed = true
	}

	return out
}

// persistAsync schedules a best-effort save of the snapshot. Failures are
// logged and retried inside the persistence adapter; they never roll back
// the in-memory record, which stays authoritative for this node.
func (s *Service) persistAsync(snapshot models.DeviceState, version uint64) {
	s.pool.Submit(s.bgCtx, func(taskCtx context.Context) {
		if err := s.persistence.SaveState(taskCtx, &snapshot); err != nil {
			s.logger.Error().
				Err(err).
				Str("device_id", snapshot.DeviceID).
				Msg("Failed to persist device state")

			return
		}

		s.store.MarkClean(snapshot.DeviceID, version)
	})
}

// notifyStateChange broadcasts an active-flag transition and, on the
// inactivity alarm edge, hands the event to the notification rule engine.
// Fire-and-forget: publish failures are logged only.
func (s *Service) notifyStateChange(snapshot models.DeviceState, ts int64, alarmed bool) {
	s.pool.Submit(s.bgCtx, func(taskCtx context.Context) {
		if err := s.persistence.RecordTransition(taskCtx, &snapshot, ts); err != nil {
			s.logger.Error().
				Err(err).
				Str("device_id", snapshot.DeviceID).
				Msg("Failed to record state transition point")
		}

		if err := s.notifier.PublishStateChange(taskCtx, &snapshot, ts); err != nil {
			s.logger.Error().
				Err(err).
				Str("device_id", snapshot.DeviceID).
				Msg("Failed to publish state change")
		}

		if !alarmed {
			return
		}

		if err := s.notifier.PublishInactivityAlarm(taskCtx, &snapshot, ts); err != nil {
			s.logger.Error().
				Err(err).
				Str("device_id", snapshot.DeviceID).
				Msg("Failed to publish inactivity alarm")
		}
	})
}

// flushDirty persists, in batches, every record still marked dirty. Used
// on shutdown so nothing leaves memory unflushed.
func (s *Service) flushDirty(ctx context.Context) {
	var batch []models.DeviceState

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := s.persistence.SaveStates(ctx, batch); err != nil {
			s.logger.Error().Err(err).Int("count", len(batch)).Msg("Failed to flush device states")
		}

		batch = batch[:0]
	}

	for _, st := range s.store.DirtyStates() {
		batch = append(batch, st)
		if len(batch) >= s.batchSize {
			flush()
		}
	}

	flush()
}
