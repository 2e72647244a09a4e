package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gridswitch/internal/api"
	"github.com/nerrad567/gridswitch/internal/command"
	"github.com/nerrad567/gridswitch/internal/directory"
	"github.com/nerrad567/gridswitch/internal/dispatch"
	"github.com/nerrad567/gridswitch/internal/grid"
	"github.com/nerrad567/gridswitch/internal/infrastructure/config"
	"github.com/nerrad567/gridswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/gridswitch/internal/infrastructure/logging"
	"github.com/nerrad567/gridswitch/internal/infrastructure/mqtt"
	"github.com/nerrad567/gridswitch/internal/smartplug"
)

// healthChecker is implemented by every infrastructure client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// run is the dispatcher, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//
// Returns:
//   - error: nil on clean shutdown, or error describing a startup failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting gridswitch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Address directory
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing directory store", "backend", cfg.Directory.Backend)
		if closeErr := backend.Close(); closeErr != nil {
			log.Error("error closing directory store", "error", closeErr)
		}
	}()

	dir := directory.New(backend.store, cfg.Directory.KeyPrefix)
	dir.SetLogger(log.With("component", "directory"))

	// Commands must never resolve against an empty directory by accident
	snap, err := dir.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("loading address directory: %w", err)
	}
	log.Info("address directory loaded",
		"backend", cfg.Directory.Backend,
		"prefix", cfg.Directory.KeyPrefix,
		"entries", snap.Len(),
	)

	// Bus
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Command pipeline
	devices := smartplug.NewClient(cfg.Device)
	devices.SetLogger(log.With("component", "smartplug"))

	dispatcher := dispatch.New(devices, cfg.Dispatch.CommandTimeout)
	dispatcher.SetLogger(log.With("component", "dispatch"))

	resolver := grid.NewResolver(cfg.Grid)

	svc := command.NewService(resolver, dir, dispatcher)
	svc.SetLogger(log.With("component", "command"))
	svc.SetPublisher(mqttClient)

	// Outcome time series (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		svc.SetRecorder(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Security:  cfg.Security,
			Logger:    log.With("component", "api"),
			Resolver:  resolver,
			Directory: dir,
			Commands:  svc,
			Devices:   devices,
			MQTT:      mqttClient,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		svc.SetBroadcaster(server.Hub())
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	checks := map[string]healthChecker{
		"directory": backend,
		"mqtt":      mqttClient,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	filter := mqtt.CommandFilter(cfg.Grid.ShortTopic)
	if err := mqttClient.Subscribe(filter, byte(cfg.Grid.QoS), svc.Handler(ctx)); err != nil { // #nosec G115 -- validated 0..2
		return fmt.Errorf("subscribing to %s: %w", filter, err)
	}
	log.Info("listening for commands", "filter", filter, "qos", cfg.Grid.QoS)

	go dir.Run(ctx, cfg.Directory.RefreshInterval)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	svc.Wait()
	log.Info("gridswitch stopped")
	return nil
}

// healthCheck verifies every infrastructure connection.
//
// Returns:
//   - error: Every failure joined, or nil if all are healthy
func healthCheck(ctx context.Context, checks map[string]healthChecker) error {
	var errs []error
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
