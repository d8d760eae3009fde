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
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
)

// AssignmentWatcher subscribes to the partition assignment subject. The
// cluster coordinator publishes the full current set on every topology
// change; each message replaces the previous assignment wholesale.
type AssignmentWatcher struct {
	nc      *nats.Conn
	subject string
	nodeID  string
	manager DeviceStateManager
	logger  logger.Logger

	sub *nats.Subscription
}

func NewAssignmentWatcher(nc *nats.Conn, subject, nodeID string, manager DeviceStateManager, log logger.Logger) *AssignmentWatcher {
	return &AssignmentWatcher{
		nc:      nc,
		subject: subject,
		nodeID:  nodeID,
		manager: manager,
		logger:  log,
	}
}

// Start subscribes to assignment updates.
func (w *AssignmentWatcher) Start(ctx context.Context) error {
	sub, err := w.nc.Subscribe(w.subject, func(msg *nats.Msg) {
		w.handleAssignment(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.subject, err)
	}

	w.sub = sub

	w.logger.Info().Str("subject", w.subject).Msg("Watching partition assignments")

	return nil
}

// Stop unsubscribes from assignment updates.
func (w *AssignmentWatcher) Stop() error {
	if w.sub == nil {
		return nil
	}

	return w.sub.Unsubscribe()
}

func (w *AssignmentWatcher) handleAssignment(ctx context.Context, payload []byte) {
	var assignment models.PartitionAssignment

	if err := json.Unmarshal(payload, &assignment); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode partition assignment")
		return
	}

	if assignment.NodeID != "" && assignment.NodeID != w.nodeID {
		return
	}

	w.logger.Info().
		Int("partitions", len(assignment.Partitions)).
		Msg("Received partition assignment")

	w.manager.HandlePartitionChange(ctx, assignment.Partitions)
}
