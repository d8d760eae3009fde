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

// DeviceState is the in-memory presence record for a single device.
// All timestamps are epoch milliseconds; zero means "never".
type DeviceState struct {
	TenantID string `json:"tenant_id"`
	DeviceID string `json:"device_id"`
	// Partition is the keyspace shard this device belongs to. At most one
	// node owns a partition at any time, so at most one node holds this
	// record in memory.
	Partition int32 `json:"partition"`

	Active             bool  `json:"active"`
	LastConnectTime    int64 `json:"last_connect_time"`
	LastDisconnectTime int64 `json:"last_disconnect_time"`
	LastActivityTime   int64 `json:"last_activity_time"`
	// LastInactivityAlarmTime is non-zero while the current silence period
	// has already been signaled. It is reset to zero when the device comes
	// back, so the next silence period can raise its own signal.
	LastInactivityAlarmTime int64 `json:"last_inactivity_alarm_time"`
	InactivityTimeoutMs     int64 `json:"inactivity_timeout_ms"`
}

// Expired reports whether the record's last activity is older than its
// inactivity timeout at the given instant. A device with no recorded
// activity is never expired; it has nothing to go silent from.
func (s *DeviceState) Expired(nowMs int64) bool {
	if s.LastActivityTime == 0 || s.InactivityTimeoutMs <= 0 {
		return false
	}

	return nowMs-s.LastActivityTime >= s.InactivityTimeoutMs
}

// ConnectivityEventType enumerates the inbound transport events.
type ConnectivityEventType string

const (
	EventDeviceConnected      ConnectivityEventType = "connect"
	EventDeviceActivity       ConnectivityEventType = "activity"
	EventDeviceDisconnected   ConnectivityEventType = "disconnect"
	EventDeviceDeleted        ConnectivityEventType = "deleted"
	EventDeviceTimeoutUpdated ConnectivityEventType = "timeout_update"
)

// ConnectivityEvent is the envelope the transport layer publishes for
// every device session or telemetry observation. TimeoutMs is set only
// on timeout_update events.
type ConnectivityEvent struct {
	TenantID  string                `json:"tenant_id"`
	DeviceID  string                `json:"device_id"`
	EventType ConnectivityEventType `json:"event_type"`
	Timestamp int64                 `json:"timestamp"`
	TimeoutMs int64                 `json:"timeout_ms,omitempty"`
}

// PartitionAssignment is the full current set of partitions owned by a
// node. The cluster coordinator publishes the complete set on every
// topology change; deltas are computed by the receiver.
type PartitionAssignment struct {
	NodeID     string  `json:"node_id"`
	Partitions []int32 `json:"partitions"`
	AssignedAt int64   `json:"assigned_at"`
}

// TimeoutPolicyScope names the level of the timeout precedence chain a
// policy update targets.
type TimeoutPolicyScope string

const (
	PolicyScopeTenant        TimeoutPolicyScope = "tenant"
	PolicyScopeProfile       TimeoutPolicyScope = "profile"
	PolicyScopeProfileAssign TimeoutPolicyScope = "profile_assignment"
	PolicyScopeDevice        TimeoutPolicyScope = "device"
)

// TimeoutPolicyUpdate is pushed by the provisioning plane whenever a
// tenant default, device-profile default, profile assignment or
// per-device timeout override changes.
type TimeoutPolicyUpdate struct {
	Scope     TimeoutPolicyScope `json:"scope"`
	TenantID  string             `json:"tenant_id,omitempty"`
	ProfileID string             `json:"profile_id,omitempty"`
	DeviceID  string             `json:"device_id,omitempty"`
	TimeoutMs int64              `json:"timeout_ms,omitempty"`
}
