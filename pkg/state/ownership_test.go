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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetstate/pkg/models"
)

func TestHandlePartitionChangeAcquiresAndRehydrates(t *testing.T) {
	svc, persistence, _, timeouts := newTestService(t)
	ctx := context.Background()
	clock := useClock(svc)
	clock.set(100_000)

	partition := svc.store.PartitionFor(testDevice)

	// Persisted during a crash: flag says inactive, but the device was
	// heard from 5s ago against a 60s timeout.
	persisted := []models.DeviceState{{
		TenantID:            testTenant,
		DeviceID:            testDevice,
		Partition:           partition,
		Active:              false,
		LastActivityTime:    95_000,
		InactivityTimeoutMs: 60_000,
	}}

	persistence.EXPECT().LoadPartitionStates(gomock.Any(), partition).Return(persisted, nil)
	timeouts.EXPECT().InactivityTimeoutMs(gomock.Any(), gomock.Any()).Return(int64(60_000)).AnyTimes()

	svc.HandlePartitionChange(ctx, []int32{partition})

	drain(svc)

	require.True(t, svc.store.IsOwned(partition))

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.True(t, got.Active, "activity within the timeout window must rehydrate as active")
	assert.Equal(t, int64(95_000), got.LastActivityTime)
}

func TestRehydrationRaisesSignalForBreachWhilePartitionWasDown(t *testing.T) {
	svc, persistence, notifier, _ := newTestService(t)
	ctx := context.Background()
	clock := useClock(svc)
	clock.set(500_000)

	partition := svc.store.PartitionFor(testDevice)

	// Persisted as active, then the node was down long past the timeout.
	// The threshold was crossed while no node held the partition, so the
	// silence period has not been signaled yet.
	persisted := []models.DeviceState{{
		TenantID:            testTenant,
		DeviceID:            testDevice,
		Partition:           partition,
		Active:              true,
		LastActivityTime:    100_000,
		InactivityTimeoutMs: 60_000,
	}}

	persistence.EXPECT().LoadPartitionStates(gomock.Any(), partition).Return(persisted, nil)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	persistence.EXPECT().RecordTransition(gomock.Any(), gomock.Any(), int64(600_000)).Return(nil)

	// Exactly one deactivation and one alarm, raised by the first sweep.
	notifier.EXPECT().PublishStateChange(gomock.Any(), gomock.Any(), int64(600_000)).Return(nil)
	notifier.EXPECT().PublishInactivityAlarm(gomock.Any(), gomock.Any(), int64(600_000)).Return(nil)

	svc.HandlePartitionChange(ctx, []int32{partition})
	drain(svc)

	clock.set(600_000)
	svc.runSweep()

	// The silence continues; later sweeps must not signal again.
	clock.set(700_000)
	svc.runSweep()

	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, int64(600_000), got.LastInactivityAlarmTime)
}

func TestRehydrationKeepsSignaledSilenceInactive(t *testing.T) {
	svc, persistence, _, _ := newTestService(t)
	ctx := context.Background()
	clock := useClock(svc)
	clock.set(500_000)

	partition := svc.store.PartitionFor(testDevice)

	// The breach was already signaled before the handoff; rehydration
	// must not replay it.
	persisted := []models.DeviceState{{
		TenantID:                testTenant,
		DeviceID:                testDevice,
		Partition:               partition,
		Active:                  false,
		LastActivityTime:        100_000,
		LastInactivityAlarmTime: 170_000,
		InactivityTimeoutMs:     60_000,
	}}

	persistence.EXPECT().LoadPartitionStates(gomock.Any(), partition).Return(persisted, nil)

	svc.HandlePartitionChange(ctx, []int32{partition})
	drain(svc)

	clock.set(600_000)
	svc.runSweep()
	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, int64(170_000), got.LastInactivityAlarmTime)
}

func TestRehydrationFillsMissingTimeout(t *testing.T) {
	svc, persistence, _, timeouts := newTestService(t)
	ctx := context.Background()
	clock := useClock(svc)
	clock.set(100_000)

	partition := svc.store.PartitionFor(testDevice)

	persisted := []models.DeviceState{{
		TenantID:         testTenant,
		DeviceID:         testDevice,
		Partition:        partition,
		LastActivityTime: 99_000,
	}}

	persistence.EXPECT().LoadPartitionStates(gomock.Any(), partition).Return(persisted, nil)
	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(int64(60_000))

	svc.HandlePartitionChange(ctx, []int32{partition})

	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), got.InactivityTimeoutMs)
	assert.True(t, got.Active)
}

func TestHandlePartitionChangeReleasesAndFlushes(t *testing.T) {
	svc, persistence, _, timeouts := newTestService(t)
	ctx := context.Background()

	partition := svc.store.PartitionFor(testDevice)

	persistence.EXPECT().LoadPartitionStates(gomock.Any(), partition).Return(nil, nil)
	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)

	// A failed save leaves the record dirty at handoff time.
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(ErrPersistenceUnavailable)

	svc.HandlePartitionChange(ctx, []int32{partition})
	drain(svc)

	require.NoError(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 1000))
	drain(svc)

	persistence.EXPECT().SaveStates(gomock.Any(), gomock.Len(1)).Return(nil)

	svc.HandlePartitionChange(ctx, nil)
	drain(svc)

	require.False(t, svc.store.IsOwned(partition))
	require.ErrorIs(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 2000), ErrNotOwned)
}

func TestHandlePartitionChangeIsIdempotent(t *testing.T) {
	svc, persistence, _, _ := newTestService(t)
	ctx := context.Background()

	// A repeated identical assignment must not reload the partition.
	persistence.EXPECT().LoadPartitionStates(gomock.Any(), int32(3)).Return(nil, nil).Times(1)

	svc.HandlePartitionChange(ctx, []int32{3})
	drain(svc)

	svc.HandlePartitionChange(ctx, []int32{3})
	drain(svc)

	assert.ElementsMatch(t, []int32{3}, svc.store.OwnedPartitions())
}

func TestHandlePartitionChangeComputesDelta(t *testing.T) {
	svc, persistence, _, _ := newTestService(t)
	ctx := context.Background()

	persistence.EXPECT().LoadPartitionStates(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	svc.HandlePartitionChange(ctx, []int32{0, 1, 2})
	drain(svc)

	svc.HandlePartitionChange(ctx, []int32{1, 2, 3})
	drain(svc)

	assert.ElementsMatch(t, []int32{1, 2, 3}, svc.store.OwnedPartitions())
}

func TestRehydrationFailureKeepsOwnershipForLiveEvents(t *testing.T) {
	svc, persistence, _, timeouts := newTestService(t)
	ctx := context.Background()

	partition := svc.store.PartitionFor(testDevice)

	persistence.EXPECT().LoadPartitionStates(gomock.Any(), partition).
		Return(nil, ErrPersistenceUnavailable)
	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	svc.HandlePartitionChange(ctx, []int32{partition})
	drain(svc)

	// Ownership was granted before the load, so live traffic still lands.
	require.NoError(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 1000))
	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.LastConnectTime)
}
