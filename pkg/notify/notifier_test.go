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

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
)

var errPublishFailed = errors.New("publish failed")

type publishedMsg struct {
	subject string
	payload []byte
}

type fakePublisher struct {
	published []publishedMsg
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if p.err != nil {
		return nil, p.err
	}

	p.published = append(p.published, publishedMsg{subject: subject, payload: payload})

	return &jetstream.PubAck{Stream: "device-events", Sequence: uint64(len(p.published))}, nil
}

func testNATSConfig() models.NATSConfig {
	return models.NATSConfig{
		URL:                 "nats://localhost:4222",
		StreamName:          "device-events",
		ConsumerName:        "statesvc",
		ConnectivitySubject: "events.device.connectivity",
		StateSubject:        "events.device.state",
		SubscriptionSubject: "events.device.subscription",
		AlarmSubject:        "events.device.alarm",
		AssignmentSubject:   "cluster.assignments",
	}
}

func decodeCloudEvent(t *testing.T, payload []byte) models.CloudEvent {
	t.Helper()

	var event models.CloudEvent

	require.NoError(t, json.Unmarshal(payload, &event))

	return event
}

func TestPublishStateChangeBroadcastsAndMirrors(t *testing.T) {
	js := &fakePublisher{}
	p := NewEventPublisher(js, testNATSConfig(), logger.NewTestLogger())

	st := &models.DeviceState{TenantID: "tenant-1", DeviceID: "sensor-001", Active: true}

	require.NoError(t, p.PublishStateChange(context.Background(), st, 5000))

	require.Len(t, js.published, 2)
	assert.Equal(t, "events.device.state", js.published[0].subject)
	assert.Equal(t, "events.device.subscription.sensor-001", js.published[1].subject)

	event := decodeCloudEvent(t, js.published[0].payload)
	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, "com.carverauto.fleetstate.device.state", event.Type)
	assert.Equal(t, "fleetstate/statesvc", event.Source)
	assert.NotEmpty(t, event.ID)

	data, err := json.Marshal(event.Data)
	require.NoError(t, err)

	var stateData models.DeviceStateEventData

	require.NoError(t, json.Unmarshal(data, &stateData))
	assert.Equal(t, "tenant-1", stateData.TenantID)
	assert.Equal(t, "sensor-001", stateData.DeviceID)
	assert.True(t, stateData.Active)
	assert.Equal(t, int64(5000), stateData.Timestamp)
}

func TestPublishInactivityAlarm(t *testing.T) {
	js := &fakePublisher{}
	p := NewEventPublisher(js, testNATSConfig(), logger.NewTestLogger())

	st := &models.DeviceState{TenantID: "tenant-1", DeviceID: "sensor-001"}

	require.NoError(t, p.PublishInactivityAlarm(context.Background(), st, 7000))

	require.Len(t, js.published, 1)
	assert.Equal(t, "events.device.alarm", js.published[0].subject)

	event := decodeCloudEvent(t, js.published[0].payload)
	assert.Equal(t, "com.carverauto.fleetstate.device.inactivity", event.Type)

	data, err := json.Marshal(event.Data)
	require.NoError(t, err)

	var alarmData models.InactivityAlarmEventData

	require.NoError(t, json.Unmarshal(data, &alarmData))
	assert.Equal(t, models.EventKindInactivity, alarmData.EventKind)
	assert.Equal(t, int64(7000), alarmData.Timestamp)
}

func TestPublishStateChangeReturnsPublishError(t *testing.T) {
	js := &fakePublisher{err: errPublishFailed}
	p := NewEventPublisher(js, testNATSConfig(), logger.NewTestLogger())

	st := &models.DeviceState{TenantID: "tenant-1", DeviceID: "sensor-001"}

	err := p.PublishStateChange(context.Background(), st, 5000)
	require.ErrorIs(t, err, errPublishFailed)
}
