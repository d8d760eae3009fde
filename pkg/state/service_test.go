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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
)

const (
	testTenant  = "tenant-1"
	testDevice  = "sensor-001"
	testTimeout = int64(300_000)
)

func newTestService(t *testing.T) (*Service, *MockPersistence, *MockNotifier, *MockTimeoutProvider) {
	t.Helper()

	ctrl := gomock.NewController(t)
	persistence := NewMockPersistence(ctrl)
	notifier := NewMockNotifier(ctrl)
	timeouts := NewMockTimeoutProvider(ctrl)

	cfg := &models.StateServiceConfig{
		NodeID:                   "node-1",
		DefaultInactivityTimeout: models.Duration(5 * time.Minute),
		SweepInterval:            models.Duration(time.Minute),
		PersistenceBatchSize:     100,
		WorkerPoolSize:           4,
		PartitionCount:           testPartitionCount,
	}

	svc := NewService(cfg, persistence, notifier, timeouts, logger.NewTestLogger())

	return svc, persistence, notifier, timeouts
}

// drain waits for asynchronous persistence and notification side effects
// before the test asserts on them.
func drain(svc *Service) {
	svc.pool.Drain(context.Background())
}

func TestConnectActivityDisconnectLifecycle(t *testing.T) {
	svc, persistence, notifier, timeouts := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	persistence.EXPECT().RecordTransition(gomock.Any(), gomock.Any(), int64(2000)).Return(nil)
	notifier.EXPECT().PublishStateChange(gomock.Any(), gomock.Any(), int64(2000)).Return(nil)

	require.NoError(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 1000))
	require.NoError(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 2000))
	require.NoError(t, svc.OnDeviceDisconnect(ctx, testTenant, testDevice, 3000))

	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, int64(1000), got.LastConnectTime)
	assert.Equal(t, int64(2000), got.LastActivityTime)
	assert.Equal(t, int64(3000), got.LastDisconnectTime)
	assert.Equal(t, int64(0), got.LastInactivityAlarmTime)
	assert.Equal(t, testTimeout, got.InactivityTimeoutMs)
}

func TestActivityNotifiesOnlyOnInactiveToActiveEdge(t *testing.T) {
	svc, persistence, notifier, timeouts := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	persistence.EXPECT().RecordTransition(gomock.Any(), gomock.Any(), int64(1000)).Return(nil)

	// One signal for the first activity; the follow-ups stay silent.
	notifier.EXPECT().PublishStateChange(gomock.Any(), gomock.Any(), int64(1000)).Return(nil)

	require.NoError(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 1000))
	require.NoError(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 2000))
	require.NoError(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 3000))

	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, int64(3000), got.LastActivityTime)
}

func TestStaleTimestampsNeverRegressState(t *testing.T) {
	svc, persistence, notifier, timeouts := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	persistence.EXPECT().RecordTransition(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	notifier.EXPECT().PublishStateChange(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 5000))
	require.NoError(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 5000))

	// Out-of-order replays carry older timestamps.
	require.NoError(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 4000))
	require.NoError(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 3000))

	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.LastConnectTime)
	assert.Equal(t, int64(5000), got.LastActivityTime)
}

func TestEventsRejectInvalidTimestamps(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	for _, ts := range []int64{0, -1} {
		require.ErrorIs(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, ts), ErrInvalidTimestamp)
		require.ErrorIs(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, ts), ErrInvalidTimestamp)
		require.ErrorIs(t, svc.OnDeviceDisconnect(ctx, testTenant, testDevice, ts), ErrInvalidTimestamp)
	}

	_, err := svc.store.Get(testDevice)
	require.ErrorIs(t, err, ErrDeviceStateNotFound)
}

func TestEventsForUnownedPartitionFailNotOwned(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 1000), ErrNotOwned)
	require.ErrorIs(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 1000), ErrNotOwned)
	require.ErrorIs(t, svc.OnDeviceDisconnect(ctx, testTenant, testDevice, 1000), ErrNotOwned)
	require.ErrorIs(t, svc.OnDeviceDeleted(ctx, testDevice), ErrNotOwned)
}

func TestDisconnectForUnknownDeviceFailsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	require.ErrorIs(t, svc.OnDeviceDisconnect(ctx, testTenant, testDevice, 1000), ErrDeviceStateNotFound)
}

func TestOnDeviceDeletedEvictsAndPurges(t *testing.T) {
	svc, persistence, _, timeouts := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	persistence.EXPECT().DeleteState(gomock.Any(), testDevice).Return(nil)

	require.NoError(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 1000))
	require.NoError(t, svc.OnDeviceDeleted(ctx, testDevice))

	drain(svc)

	_, err := svc.store.Get(testDevice)
	require.ErrorIs(t, err, ErrDeviceStateNotFound)
}

func TestOnDeviceDeletedUnknownDeviceIsNoop(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	require.NoError(t, svc.OnDeviceDeleted(ctx, testDevice))
}

func TestTimeoutUpdateShrinkDeactivatesImmediately(t *testing.T) {
	svc, persistence, notifier, timeouts := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))
	svc.nowMs = func() int64 { return 500_000 }

	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	persistence.EXPECT().RecordTransition(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	// One change for the activity edge, one for the shrink-induced expiry.
	notifier.EXPECT().PublishStateChange(gomock.Any(), gomock.Any(), int64(1000)).Return(nil)
	notifier.EXPECT().PublishStateChange(gomock.Any(), gomock.Any(), int64(500_000)).Return(nil)
	notifier.EXPECT().PublishInactivityAlarm(gomock.Any(), gomock.Any(), int64(500_000)).Return(nil)

	require.NoError(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 1000))

	// 499s of silence; the original 300s timeout has long passed, and the
	// new one is even shorter.
	require.NoError(t, svc.OnDeviceTimeoutUpdate(ctx, testTenant, testDevice, 100_000))

	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, int64(100_000), got.InactivityTimeoutMs)
	assert.Equal(t, int64(500_000), got.LastInactivityAlarmTime)
}

func TestTimeoutUpdateGrowKeepsActiveDeviceActive(t *testing.T) {
	svc, persistence, notifier, timeouts := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))
	svc.nowMs = func() int64 { return 100_000 }

	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	persistence.EXPECT().RecordTransition(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	notifier.EXPECT().PublishStateChange(gomock.Any(), gomock.Any(), int64(90_000)).Return(nil)

	require.NoError(t, svc.OnDeviceActivity(ctx, testTenant, testDevice, 90_000))
	require.NoError(t, svc.OnDeviceTimeoutUpdate(ctx, testTenant, testDevice, 600_000))

	drain(svc)

	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, int64(600_000), got.InactivityTimeoutMs)
}

func TestTimeoutUpdateRejectsNonPositive(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	require.ErrorIs(t, svc.OnDeviceTimeoutUpdate(ctx, testTenant, testDevice, 0), ErrInvalidTimeout)
	require.ErrorIs(t, svc.OnDeviceTimeoutUpdate(ctx, testTenant, testDevice, -100), ErrInvalidTimeout)
}

func TestPersistFailureKeepsRecordDirty(t *testing.T) {
	svc, persistence, _, timeouts := newTestService(t)
	ctx := context.Background()

	svc.store.Own(svc.store.PartitionFor(testDevice))

	timeouts.EXPECT().InactivityTimeoutMs(testTenant, testDevice).Return(testTimeout)
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(ErrPersistenceUnavailable)

	require.NoError(t, svc.OnDeviceConnect(ctx, testTenant, testDevice, 1000))

	drain(svc)

	// The in-memory record survives unharmed and stays flagged for the
	// next flush.
	got, err := svc.store.Get(testDevice)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.LastConnectTime)
	require.Len(t, svc.store.DirtyStates(), 1)
}

func TestStopFlushesDirtyRecordsInBatches(t *testing.T) {
	svc, persistence, _, timeouts := newTestService(t)
	ctx := context.Background()

	svc.batchSize = 2

	devices := []string{"sensor-001", "sensor-002", "sensor-003"}
	for _, id := range devices {
		svc.store.Own(svc.store.PartitionFor(id))
	}

	timeouts.EXPECT().InactivityTimeoutMs(testTenant, gomock.Any()).Return(testTimeout).Times(len(devices))
	persistence.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(ErrPersistenceUnavailable).Times(len(devices))

	for _, id := range devices {
		require.NoError(t, svc.OnDeviceConnect(ctx, testTenant, id, 1000))
	}

	// Three dirty records with batch size two make a full batch plus a
	// remainder.
	persistence.EXPECT().SaveStates(gomock.Any(), gomock.Len(2)).Return(nil)
	persistence.EXPECT().SaveStates(gomock.Any(), gomock.Len(1)).Return(nil)

	svc.Start(ctx)
	svc.Stop(ctx)
}
