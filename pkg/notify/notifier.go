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

// Package notify publishes device state-change CloudEvents to NATS
// JetStream for cross-node observers, live subscriptions and the
// notification rule engine.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
)

const eventSource = "fleetstate/statesvc"

// Publisher is the subset of jetstream.JetStream the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher implements state.Notifier over JetStream.
type EventPublisher struct {
	js     Publisher
	cfg    models.NATSConfig
	logger logger.Logger
}

// NewEventPublisher creates a publisher for the configured subjects.
func NewEventPublisher(js Publisher, cfg models.NATSConfig, log logger.Logger) *EventPublisher {
	return &EventPublisher{js: js, cfg: cfg, logger: log}
}

// PublishStateChange broadcasts an active-flag transition to the cluster
// subject and mirrors it to the live-subscription subject for UI/API
// consumers. No acknowledgment is required by the core.
func (p *EventPublisher) PublishStateChange(ctx context.Context, st *models.DeviceState, ts int64) error {
	data := models.DeviceStateEventData{
		TenantID:  st.TenantID,
		DeviceID:  st.DeviceID,
		Active:    st.Active,
		Timestamp: ts,
	}

	if err := p.publishEvent(ctx, p.cfg.StateSubject, "com.carverauto.fleetstate.device.state", data); err != nil {
		return err
	}

	subscriptionSubject := fmt.Sprintf("%s.%s", p.cfg.SubscriptionSubject, st.DeviceID)

	return p.publishEvent(ctx, subscriptionSubject, "com.carverauto.fleetstate.device.state", data)
}

// PublishInactivityAlarm hands the inactivity edge to the notification
// rule engine so it can raise a user-visible alert. Emitted at most once
// per silence period by the caller.
func (p *EventPublisher) PublishInactivityAlarm(ctx context.Context, st *models.DeviceState, ts int64) error {
	data := models.InactivityAlarmEventData{
		TenantID:  st.TenantID,
		DeviceID:  st.DeviceID,
		EventKind: models.EventKindInactivity,
		Timestamp: ts,
	}

	return p.publishEvent(ctx, p.cfg.AlarmSubject, "com.carverauto.fleetstate.device.inactivity", data)
}

func (p *EventPublisher) publishEvent(ctx context.Context, subject, eventType string, data interface{}) error {
	now := time.Now()

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &now,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	ack, err := p.js.Publish(ctx, subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("seq", ack.Sequence).
		Msg("Published state event")

	return nil
}
