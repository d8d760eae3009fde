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
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetstate/pkg/logger"
)

const (
	defaultMaxPullMessages = 64
	// Short enough that shutdown never sits out a full idle fetch.
	defaultPullExpiry    = 5 * time.Second
	defaultAckWait       = 30 * time.Second
	defaultMaxDeliver    = 5
	defaultMaxAckPending = 1000
	fetchRetryDelay      = time.Second
)

// Consumer pulls connectivity events off JetStream and runs them through
// the processor.
type Consumer struct {
	consumer     jetstream.Consumer
	streamName   string
	consumerName string
	logger       logger.Logger
}

// NewConsumer creates or binds the durable pull consumer for the
// connectivity subjects.
func NewConsumer(ctx context.Context, js jetstream.JetStream, streamName, consumerName, subject string, log logger.Logger) (*Consumer, error) {
	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		cfg := jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       defaultAckWait,
			MaxDeliver:    defaultMaxDeliver,
			MaxAckPending: defaultMaxAckPending,
		}
		if subject != "" {
			cfg.FilterSubject = subject
		}

		consumer, err = js.CreateConsumer(ctx, streamName, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer %s: %w", consumerName, err)
		}
	}

	return &Consumer{
		consumer:     consumer,
		streamName:   streamName,
		consumerName: consumerName,
		logger:       log,
	}, nil
}

// ProcessMessages pulls and applies events until the context is canceled.
func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) {
	c.logger.Info().
		Str("stream", c.streamName).
		Str("consumer", c.consumerName).
		Msg("Starting connectivity event consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Stopping connectivity event consumer")
			return
		default:
			msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
			if err != nil {
				c.logger.Error().Err(err).Msg("Failed to fetch messages")
				time.Sleep(fetchRetryDelay)

				continue
			}

			for msg := range msgs.Messages() {
				c.handleMessage(ctx, msg, processor)
			}

			if fetchErr := msgs.Error(); fetchErr != nil {
				c.logger.Error().Err(fetchErr).Msg("Fetch error")
			}
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg, processor *Processor) {
	err := processor.Process(ctx, msg.Data())
	if err == nil {
		_ = msg.Ack()
		return
	}

	if IsDrop(err) {
		c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Dropping connectivity event")
		_ = msg.Ack()

		return
	}

	metadata, metaErr := msg.Metadata()
	if metaErr == nil && metadata.NumDelivered >= defaultMaxDeliver {
		c.logger.Error().
			Err(err).
			Str("subject", msg.Subject()).
			Uint64("deliveries", metadata.NumDelivered).
			Msg("Max deliveries reached, discarding event")
		_ = msg.Ack()

		return
	}

	c.logger.Debug().Err(err).Str("subject", msg.Subject()).Msg("Requeueing connectivity event")
	_ = msg.Nak()
}
