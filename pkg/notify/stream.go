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
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetstate/pkg/models"
)

// EnsureStream creates or updates the JetStream stream carrying the
// connectivity, state and alarm subjects.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg models.NATSConfig) (jetstream.Stream, error) {
	subjects := []string{
		cfg.ConnectivitySubject + ".>",
		cfg.StateSubject,
		cfg.SubscriptionSubject + ".>",
		cfg.AlarmSubject,
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  subjects,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}

	return stream, nil
}
