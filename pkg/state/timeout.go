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

import "sync"

// TimeoutResolver resolves effective inactivity timeouts through a plain
// precedence chain: device override, then device-profile default, then
// tenant default, then the server-wide default.
type TimeoutResolver struct {
	mu sync.RWMutex

	defaultMs       int64
	tenantDefaults  map[string]int64
	profileDefaults map[string]int64
	deviceProfiles  map[string]string
	deviceOverrides map[string]int64
}

// NewTimeoutResolver creates a resolver with the server-wide default.
func NewTimeoutResolver(defaultMs int64) *TimeoutResolver {
	return &TimeoutResolver{
		defaultMs:       defaultMs,
		tenantDefaults:  make(map[string]int64),
		profileDefaults: make(map[string]int64),
		deviceProfiles:  make(map[string]string),
		deviceOverrides: make(map[string]int64),
	}
}

// SetDeviceOverride pins a device-specific timeout. A non-positive value
// clears the override.
func (r *TimeoutResolver) SetDeviceOverride(deviceID string, ms int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ms <= 0 {
		delete(r.deviceOverrides, deviceID)
		return
	}

	r.deviceOverrides[deviceID] = ms
}

// SetProfileDefault sets the timeout for all devices assigned to a profile.
func (r *TimeoutResolver) SetProfileDefault(profileID string, ms int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ms <= 0 {
		delete(r.profileDefaults, profileID)
		return
	}

	r.profileDefaults[profileID] = ms
}

// AssignProfile links a device to a profile for timeout resolution.
func (r *TimeoutResolver) AssignProfile(deviceID, profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if profileID == "" {
		delete(r.deviceProfiles, deviceID)
		return
	}

	r.deviceProfiles[deviceID] = profileID
}

// SetTenantDefault sets the tenant-wide timeout.
func (r *TimeoutResolver) SetTenantDefault(tenantID string, ms int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ms <= 0 {
		delete(r.tenantDefaults, tenantID)
		return
	}

	r.tenantDefaults[tenantID] = ms
}

// InactivityTimeoutMs resolves the effective timeout for a device.
func (r *TimeoutResolver) InactivityTimeoutMs(tenantID, deviceID string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ms, ok := r.deviceOverrides[deviceID]; ok {
		return ms
	}

	if profileID, ok := r.deviceProfiles[deviceID]; ok {
		if ms, ok := r.profileDefaults[profileID]; ok {
			return ms
		}
	}

	if ms, ok := r.tenantDefaults[tenantID]; ok {
		return ms
	}

	return r.defaultMs
}
