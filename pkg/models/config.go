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
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrInvalidDuration       = errors.New("invalid duration value")
	ErrMissingNATSURL        = errors.New("nats_url is required")
	ErrMissingStreamName     = errors.New("stream_name is required")
	ErrMissingConsumerName   = errors.New("consumer_name is required")
	ErrMissingDatabaseConfig = errors.New("database configuration is required")
	ErrInvalidSweepInterval  = errors.New("sweep_interval must be positive")
	ErrInvalidDefaultTimeout = errors.New("default_inactivity_timeout must be positive")
	ErrInvalidPartitionCount = errors.New("partition_count must be positive")
	ErrInvalidWorkerPoolSize = errors.New("worker_pool_size must be positive")
	ErrInvalidPersistBatch   = errors.New("persistence_batch_size must be positive")
)

// Duration handles both string ("30s") and numeric (nanoseconds) JSON values.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}

		*d = Duration(tmp)
	default:
		return ErrInvalidDuration
	}

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// CNPGDatabase describes the CNPG/Timescale cluster holding device state
// attributes and the active-flag time series.
type CNPGDatabase struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password"`
	SSLMode            string            `json:"ssl_mode"`
	ApplicationName    string            `json:"application_name"`
	MaxConns           int32             `json:"max_conns"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
}

// NATSConfig holds the JetStream wiring for transport events, state
// broadcasts, partition assignments and timeout policy updates. An
// empty TimeoutPolicySubject disables the policy feed.
type NATSConfig struct {
	URL                  string `json:"nats_url"`
	StreamName           string `json:"stream_name"`
	ConsumerName         string `json:"consumer_name"`
	ConnectivitySubject  string `json:"connectivity_subject"`
	StateSubject         string `json:"state_subject"`
	SubscriptionSubject  string `json:"subscription_subject"`
	AlarmSubject         string `json:"alarm_subject"`
	AssignmentSubject    string `json:"assignment_subject"`
	TimeoutPolicySubject string `json:"timeout_policy_subject,omitempty"`
}

// StateServiceConfig is the top-level configuration for the statesvc node.
type StateServiceConfig struct {
	NodeID                   string       `json:"node_id"`
	DefaultInactivityTimeout Duration     `json:"default_inactivity_timeout"`
	SweepInterval            Duration     `json:"sweep_interval"`
	PersistenceBatchSize     int          `json:"persistence_batch_size"`
	WorkerPoolSize           int          `json:"worker_pool_size"`
	PartitionCount           int32        `json:"partition_count"`
	NATS                     NATSConfig   `json:"nats"`
	Database                 CNPGDatabase `json:"database"`
	Logging                  *LogConfig   `json:"logging,omitempty"`
}

// LogConfig mirrors logger.Config so service configs can carry logging
// settings without importing the logger package.
type LogConfig struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

func (c *StateServiceConfig) Validate() error {
	var errs []error

	if c.DefaultInactivityTimeout <= 0 {
		errs = append(errs, ErrInvalidDefaultTimeout)
	}

	if c.SweepInterval <= 0 {
		errs = append(errs, ErrInvalidSweepInterval)
	}

	if c.PersistenceBatchSize <= 0 {
		errs = append(errs, ErrInvalidPersistBatch)
	}

	if c.WorkerPoolSize <= 0 {
		errs = append(errs, ErrInvalidWorkerPoolSize)
	}

	if c.PartitionCount <= 0 {
		errs = append(errs, ErrInvalidPartitionCount)
	}

	if c.NATS.URL == "" {
		errs = append(errs, ErrMissingNATSURL)
	}

	if c.NATS.StreamName == "" {
		errs = append(errs, ErrMissingStreamName)
	}

	if c.NATS.ConsumerName == "" {
		errs = append(errs, ErrMissingConsumerName)
	}

	if c.Database.Host == "" || c.Database.Database == "" {
		errs = append(errs, ErrMissingDatabaseConfig)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
