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

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetstate/pkg/config"
	"github.com/carverauto/fleetstate/pkg/db"
	"github.com/carverauto/fleetstate/pkg/ingest"
	"github.com/carverauto/fleetstate/pkg/logger"
	"github.com/carverauto/fleetstate/pkg/models"
	"github.com/carverauto/fleetstate/pkg/notify"
	"github.com/carverauto/fleetstate/pkg/state"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/fleetstate/statesvc.json", "Path to state service config file")
	flag.Parse()

	ctx := context.Background()

	bootLog, err := logger.NewLogger(ctx, logger.DefaultConfig())
	if err != nil {
		return err
	}

	var cfg models.StateServiceConfig

	cfgLoader := config.NewConfig(bootLog)
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return err
	}

	loggerConfig := logger.DefaultConfig()
	if cfg.Logging != nil {
		loggerConfig.Level = cfg.Logging.Level
		loggerConfig.Debug = cfg.Logging.Debug
		loggerConfig.Output = cfg.Logging.Output
		loggerConfig.TimeFormat = cfg.Logging.TimeFormat
	}

	svcLog, err := logger.NewComponentLogger(ctx, "statesvc", loggerConfig)
	if err != nil {
		return err
	}

	defer func() {
		if err := logger.ShutdownOTEL(); err != nil {
			svcLog.Error().Err(err).Msg("Failed to shut down OTEL logger")
		}
	}()

	dbLog, err := logger.NewComponentLogger(ctx, "statesvc-db", loggerConfig)
	if err != nil {
		return err
	}

	pool, err := db.NewCNPGPool(ctx, &cfg.Database, dbLog)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := db.NewStateStore(pool, dbLog)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("fleetstate-statesvc-"+cfg.NodeID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			svcLog.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			svcLog.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}

	if _, err := notify.EnsureStream(ctx, js, cfg.NATS); err != nil {
		return err
	}

	notifier := notify.NewEventPublisher(js, cfg.NATS, svcLog)
	timeouts := state.NewTimeoutResolver(int64(time.Duration(cfg.DefaultInactivityTimeout) / time.Millisecond))
	svc := state.NewService(&cfg, store, notifier, timeouts, svcLog)

	svc.Start(ctx)

	consumer, err := ingest.NewConsumer(ctx, js,
		cfg.NATS.StreamName, cfg.NATS.ConsumerName, cfg.NATS.ConnectivitySubject+".>", svcLog)
	if err != nil {
		return err
	}

	consumeCtx, cancelConsume := context.WithCancel(ctx)
	defer cancelConsume()

	processor := ingest.NewProcessor(svc, svcLog)

	consumeDone := make(chan struct{})

	go func() {
		defer close(consumeDone)
		consumer.ProcessMessages(consumeCtx, processor)
	}()

	watcher := ingest.NewAssignmentWatcher(nc, cfg.NATS.AssignmentSubject, cfg.NodeID, svc, svcLog)
	if err := watcher.Start(consumeCtx); err != nil {
		return err
	}

	var policyWatcher *ingest.PolicyWatcher

	if cfg.NATS.TimeoutPolicySubject != "" {
		policyWatcher = ingest.NewPolicyWatcher(nc, cfg.NATS.TimeoutPolicySubject, timeouts, svcLog)
		if err := policyWatcher.Start(); err != nil {
			return err
		}
	}

	svcLog.Info().
		Str("node_id", cfg.NodeID).
		Str("stream", cfg.NATS.StreamName).
		Msg("Device state service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	svcLog.Info().Str("signal", sig.String()).Msg("Shutting down")

	if err := watcher.Stop(); err != nil {
		svcLog.Error().Err(err).Msg("Failed to stop assignment watcher")
	}

	if policyWatcher != nil {
		if err := policyWatcher.Stop(); err != nil {
			svcLog.Error().Err(err).Msg("Failed to stop timeout policy watcher")
		}
	}

	cancelConsume()
	<-consumeDone

	stopCtx, cancelStop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelStop()

	svc.Stop(stopCtx)

	return nil
}
