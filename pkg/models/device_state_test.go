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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceStateExpired(t *testing.T) {
	tests := []struct {
		name    string
		state   DeviceState
		nowMs   int64
		expired bool
	}{
		{
			name:    "silence past timeout",
			state:   DeviceState{LastActivityTime: 1000, InactivityTimeoutMs: 500},
			nowMs:   2000,
			expired: true,
		},
		{
			name:    "exactly at threshold",
			state:   DeviceState{LastActivityTime: 1000, InactivityTimeoutMs: 1000},
			nowMs:   2000,
			expired: true,
		},
		{
			name:    "within timeout",
			state:   DeviceState{LastActivityTime: 1000, InactivityTimeoutMs: 1000},
			nowMs:   1999,
			expired: false,
		},
		{
			name:    "never active",
			state:   DeviceState{LastActivityTime: 0, InactivityTimeoutMs: 1000},
			nowMs:   1_000_000,
			expired: false,
		},
		{
			name:    "no timeout configured",
			state:   DeviceState{LastActivityTime: 1000, InactivityTimeoutMs: 0},
			nowMs:   1_000_000,
			expired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, tt.state.Expired(tt.nowMs))
		})
	}
}
