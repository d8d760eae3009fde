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

import (
	"context"
	"time"

	"github.com/carverauto/fleetstate/pkg/models"
)

// sweepLoop drives the inactivity detection at a fixed interval. A failed
// cycle is isolated; the next tick runs regardless of prior outcomes.
func (s *Service) sweepLoop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

// runSweep visits every device owned at scan time and applies the
// inactivity transition: a device silent past its timeout goes inactive,
// and the first sweep to observe a silence period raises exactly one
// signal. Devices evicted mid-scan are skipped.
func (s *Service) runSweep() {
	now := s.nowMs()
	start := time.Now()

	scanned := 0
	deactivated := 0
	alarmed := 0

	for _, deviceID := range s.store.OwnedDeviceIDs() {
		var outcome expiryOutcome

		snapshot, version, changed, err := s.store.Apply(deviceID, nil,
			func(st *models.DeviceState) bool {
				outcome = expireRecord(st, now)
				return outcome.deactivated
			})
		if err != nil {
			// Evicted or handed off between snapshot and visit.
			continue
		}

		scanned++

		if !changed {
			continue
		}

		deactivated++

		if outcome.alarmed {
			alarmed++
		}

		s.persistAsync(snapshot, version)
		s.notifyStateChange(snapshot, now, outcome.alarmed)
	}

	s.logger.Debug().
		Int("scanned", scanned).
		Int("deactivated", deactivated).
		Int("alarmed", alarmed).
		Dur("elapsed", time.Since(start)).
		Msg("Inactivity sweep finished")
}
