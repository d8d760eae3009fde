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

package state

import (
	"context"

	"github.com/carverauto/fleetstate/pkg/models"
)

// HandlePartitionChange reconciles the store with a freshly published
// partition assignment. The coordinator always pushes the full current
// set; the delta against the previous assignment is computed here.
// Newly owned partitions are rehydrated from persistence, no-longer-owned
// partitions are flushed and evicted. Per-partition work runs on the
// worker pool so reconciliation never blocks event processing for
// unaffected partitions.
func (s *Service) HandlePartitionChange(ctx context.Context, partitions []int32) {
	next := make(map[int32]struct{}, len(partitions))
	for _, p := range partitions {
		next[p] = struct{}{}
	}

	var added, removed []int32

	for _, p := range s.store.OwnedPartitions() {
		if _, keep := next[p]; !keep {
			removed = append(removed, p)
		}
	}

	for _, p := range partitions {
		if !s.store.IsOwned(p) {
			added = append(added, p)
		}
	}

	if len(added) == 0 && len(removed) == 0 {
		return
	}

	s.logger.Info().
		Ints32("added", added).
		Ints32("removed", removed).
		Msg("Partition assignment changed")

	for _, p := range removed {
		s.releasePartition(p)
	}

	for _, p := range added {
		s.acquirePartition(p)
	}
}

// releasePartition revokes ownership, drops the partition's records from
// memory and persists any that still carried unflushed mutations.
// Ownership is revoked synchronously so events start failing NotOwned
// right away; the flush itself is asynchronous.
func (s *Service) releasePartition(partition int32) {
	dirty := s.store.EvictPartition(partition)
	if len(dirty) == 0 {
		return
	}

	s.pool.Submit(s.bgCtx, func(taskCtx context.Context) {
		for start := 0; start < len(dirty); start += s.batchSize {
			end := start + s.batchSize
			if end > len(dirty) {
				end = len(dirty)
			}

			if err := s.persistence.SaveStates(taskCtx, dirty[start:end]); err != nil {
				s.logger.Error().
					Err(err).
					Int32("partition", partition).
					Int("count", end-start).
					Msg("Failed to flush device states on partition handoff")
			}
		}
	})
}

// acquirePartition takes ownership and rehydrates the partition's records
// from persistence. Ownership is granted before the load completes so
// live events are accepted immediately; rehydrated records never clobber
// records already created by those events.
func (s *Service) acquirePartition(partition int32) {
	s.store.Own(partition)

	s.pool.Submit(s.bgCtx, func(taskCtx context.Context) {
		states, err := s.persistence.LoadPartitionStates(taskCtx, partition)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int32("partition", partition).
				Msg("Failed to rehydrate partition")

			return
		}

		now := s.nowMs()

		for i := range states {
			st := states[i]
			s.rehydrate(&st, now)
			s.store.Seed(st)
		}

		s.logger.Info().
			Int32("partition", partition).
			Int("devices", len(states)).
			Msg("Partition rehydrated")
	})
}

// rehydrate normalizes a persisted record before it re-enters memory.
// The persisted active flag is never trusted outright: time has passed
// since the last write, so activity recency decides.
func (s *Service) rehydrate(st *models.DeviceState, nowMs int64) {
	if st.InactivityTimeoutMs <= 0 {
		st.InactivityTimeoutMs = s.timeouts.InactivityTimeoutMs(st.TenantID, st.DeviceID)
	}

	if st.LastActivityTime == 0 {
		st.Active = false
		return
	}

	if nowMs-st.LastActivityTime < st.InactivityTimeoutMs {
		st.Active = true
		return
	}

	// The threshold was crossed while no node held the partition. A
	// silence period that has not been signaled yet re-enters active so
	// the next sweep deactivates it and raises the signal it is still
	// owed; an already signaled silence stays inactive.
	st.Active = st.LastInactivityAlarmTime == 0
}
