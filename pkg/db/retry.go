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

package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes for transient errors that should be retried.
const (
	sqlstateDeadlockDetected     = "40P01"
	sqlstateSerializationFailed  = "40001"
	sqlstateStatementTimeout     = "57014"
	sqlstateConnectionException  = "08000"
	sqlstateConnectionFailure    = "08006"
	sqlstateCannotConnectNow     = "57P03"
	sqlstateTooManyConnections   = "53300"
	sqlstateInsufficientResource = "53000"
)

const (
	defaultMaxRetries      = 3
	defaultInitialInterval = 150 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
)

// isTransient reports whether an error is a transient PostgreSQL or
// connection failure worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateDeadlockDetected, sqlstateSerializationFailed,
			sqlstateStatementTimeout, sqlstateConnectionException,
			sqlstateConnectionFailure, sqlstateCannotConnectNow,
			sqlstateTooManyConnections, sqlstateInsufficientResource:
			return true
		}

		return false
	}

	return pgconn.SafeToRetry(err)
}

// withRetry runs op with exponential backoff for transient failures.
// Permanent failures abort immediately.
func withRetry(ctx context.Context, op func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = defaultInitialInterval
	expo.MaxInterval = defaultMaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if isTransient(err) {
				return struct{}{}, err
			}

			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(defaultMaxRetries))

	return err
}
