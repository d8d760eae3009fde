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

package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
)

// TimeoutPolicyStore is the slice of the timeout resolver the policy
// feed drives.
type TimeoutPolicyStore interface {
	SetTenantDefault(tenantID string, ms int64)
	SetProfileDefault(profileID string, ms int64)
	AssignProfile(deviceID, profileID string)
	SetDeviceOverride(deviceID string, ms int64)
}

// PolicyWatcher subscribes to timeout policy updates from the
// provisioning plane and applies them to the resolver. Updates are
// broadcast to every node; they only shape how future records resolve
// their timeout, so no ownership filtering applies.
type PolicyWatcher struct {
	nc      *nats.Conn
	subject string
	store   TimeoutPolicyStore
	logger  logger.Logger

	sub *nats.Subscription
}

func NewPolicyWatcher(nc *nats.Conn, subject string, store TimeoutPolicyStore, log logger.Logger) *PolicyWatcher {
	return &PolicyWatcher{
		nc:      nc,
		subject: subject,
		store:   store,
		logger:  log,
	}
}

// Start subscribes to policy updates.
func (w *PolicyWatcher) Start() error {
	sub, err := w.nc.Subscribe(w.subject, func(msg *nats.Msg) {
		w.handleUpdate(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.subject, err)
	}

	w.sub = sub

	w.logger.Info().Str("subject", w.subject).Msg("Watching timeout policy updates")

	return nil
}

// Stop unsubscribes from policy updates.
func (w *PolicyWatcher) Stop() error {
	if w.sub == nil {
		return nil
	}

	return w.sub.Unsubscribe()
}

func (w *PolicyWatcher) handleUpdate(payload []byte) {
	var update models.TimeoutPolicyUpdate

	if err := json.Unmarshal(payload, &update); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode timeout policy update")
		return
	}

	switch update.Scope {
	case models.PolicyScopeTenant:
		w.store.SetTenantDefault(update.TenantID, update.TimeoutMs)
	case models.PolicyScopeProfile:
		w.store.SetProfileDefault(update.ProfileID, update.TimeoutMs)
	case models.PolicyScopeProfileAssign:
		w.store.AssignProfile(update.DeviceID, update.ProfileID)
	case models.PolicyScopeDevice:
		w.store.SetDeviceOverride(update.DeviceID, update.TimeoutMs)
	default:
		w.logger.Warn().Str("scope", string(update.Scope)).Msg("Unknown timeout policy scope")
	}
}
