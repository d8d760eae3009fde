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

package models

import "time"

// CloudEvent represents a CloudEvents v1.0 compliant envelope for
// messages published to the cluster event streams.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data"`
}

// DeviceStateEventData is the payload broadcast to cross-node observers
// and live subscriptions whenever a device flips between active and
// inactive.
type DeviceStateEventData struct {
	TenantID  string `json:"tenant_id"`
	DeviceID  string `json:"device_id"`
	Active    bool   `json:"active"`
	Timestamp int64  `json:"timestamp"`
}

// InactivityAlarmEventData is the payload handed to the notification
// rule engine when a device crosses its inactivity threshold. Emitted at
// most once per silence period.
type InactivityAlarmEventData struct {
	TenantID  string `json:"tenant_id"`
	DeviceID  string `json:"device_id"`
	EventKind string `json:"event_kind"`
	Timestamp int64  `json:"timestamp"`
}

// EventKindInactivity identifies the inactivity alarm edge to the rule engine.
const EventKindInactivity = "INACTIVITY"
