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

import "errors"

var (
	// ErrNotOwned means the operation addressed a device whose partition
	// this node does not currently own. The caller is expected to reroute
	// the event to the owning node; it is never retried locally.
	ErrNotOwned = errors.New("device partition not owned by this node")

	// ErrDeviceStateNotFound means persistence has no prior state for the
	// device. On rehydration this is "no prior state", not a failure.
	ErrDeviceStateNotFound = errors.New("device state not found")

	// ErrPersistenceUnavailable marks a transient persistence failure.
	// In-memory state stays authoritative; the write is retried with backoff.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	ErrInvalidTimestamp = errors.New("invalid event timestamp")
	ErrInvalidTimeout   = errors.New("inactivity timeout must be positive")
)
