// Area Fans - per-area fan aggregation service.
//
// This is the main entry point. It loads the configuration, opens the
// directory database, connects to MQTT and InfluxDB, builds the area
// aggregates from the stored configuration entry and serves the REST and
// WebSocket API until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/area-fans/internal/aggregate"
	"github.com/nerrad567/area-fans/internal/api"
	"github.com/nerrad567/area-fans/internal/command"
	"github.com/nerrad567/area-fans/internal/configflow"
	"github.com/nerrad567/area-fans/internal/infrastructure/config"
	"github.com/nerrad567/area-fans/internal/infrastructure/database"
	"github.com/nerrad567/area-fans/internal/infrastructure/influxdb"
	"github.com/nerrad567/area-fans/internal/infrastructure/logging"
	"github.com/nerrad567/area-fans/internal/infrastructure/mqtt"
	"github.com/nerrad567/area-fans/internal/registry"
	"github.com/nerrad567/area-fans/internal/state"
	"github.com/nerrad567/area-fans/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := pflag.StringP("config", "c", getConfigPath(), "path to the YAML configuration file")
	printToken := pflag.String("print-token", "", "issue an API token for `subject` and exit")
	tokenTTL := pflag.Duration("token-ttl", api.DefaultTokenTTL, "lifetime of tokens issued with --print-token")
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("areafans %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	if *printToken != "" {
		if err := issueToken(*configPath, *printToken, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Area Fans",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS, migrations.Dir); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Area, device and entity directories
	reg := registry.NewRegistry(registry.NewSQLiteRepository(db.DB))
	reg.SetLogger(log)
	if refreshErr := reg.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading registry: %w", refreshErr)
	}
	snap, err := reg.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading registry: %w", err)
	}
	log.Info("registry initialised",
		"areas", len(snap.Areas),
		"devices", len(snap.Devices),
		"entities", len(snap.Entities),
	)

	store := state.NewStore()

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker and start state ingestion
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startMQTT(cfg, store, influxClient, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	var dispatcher command.Dispatcher
	if cfg.Fans.DevMode || mqttClient == nil {
		dispatcher = command.NewLocalDispatcher(store)
		log.Warn("dev mode: fan commands are applied to the local state store")
	} else {
		dispatcher = command.NewMQTTDispatcher(mqttClient, mqttClient.Topics(), mqttClient.QoS())
	}

	// Aggregates
	mgr := aggregate.NewManager(aggregate.Deps{
		Directory:    reg,
		States:       store,
		Dispatcher:   dispatcher,
		DomainPrefix: cfg.Fans.DomainPrefix,
		Logger:       log.Component("aggregate"),
	})
	defer mgr.Close()
	if mqttClient != nil {
		statePub := aggregate.NewStatePublisher(mqttClient, mqttClient.Topics(), log)
		mgr.AddObserver(statePub.Observe)

		pubCtx, stopPub := context.WithCancel(context.Background())
		pubDone := make(chan struct{})
		go func() {
			defer close(pubDone)
			statePub.Run(pubCtx)
		}()
		defer func() {
			stopPub()
			<-pubDone
		}()
	}
	if influxClient != nil {
		mgr.AddObserver(aggregate.RecordTo(influxClient))
	}

	// Configuration flow
	flow := configflow.NewFlow(reg, configflow.NewSQLiteRepository(db.DB), configflow.Options{
		DomainPrefix: cfg.Fans.DomainPrefix,
		AreaPrefix:   cfg.Fans.AreaPrefix,
	})
	flow.SetLogger(log.Component("configflow"))
	flow.SetOnChange(mgr.Reload)

	// API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Fans:       cfg.Fans,
		Logger:     log,
		Registry:   reg,
		States:     store,
		Aggregates: mgr,
		Flow:       flow,
		MQTT:       mqttClient,
		DB:         db.DB,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	mgr.AddObserver(aggregate.BroadcastTo(server.Hub()))

	if setupErr := setupAggregates(ctx, flow, mgr, log); setupErr != nil {
		return setupErr
	}

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, aggregates, MQTT, InfluxDB, database.
	log.Info("Area Fans stopped")
	return nil
}

// startMQTT connects to the broker and feeds member states into store.
func startMQTT(cfg *config.Config, store *state.Store, influxClient *influxdb.Client, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	ingestor := state.NewIngestor(store, client.Topics())
	ingestor.SetLogger(log)
	if influxClient != nil {
		ingestor.SetRecorder(influxClient.WriteMemberState)
	}
	if err := ingestor.Start(client, client.QoS()); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("starting state ingestion: %w", err)
	}
	log.Info("state ingestion started", "topic", client.Topics().AllStates())

	return client, nil
}

// setupAggregates builds the aggregates from the stored configuration
// entry. Without an entry nothing is created until the setup flow runs.
func setupAggregates(ctx context.Context, flow *configflow.Flow, mgr *aggregate.Manager, log *logging.Logger) error {
	entry, err := flow.Current(ctx)
	if errors.Is(err, configflow.ErrEntryNotFound) {
		log.Info("no configuration entry yet, waiting for setup flow")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading configuration entry: %w", err)
	}

	if err := mgr.Reload(ctx, entry.Data.ExcludedEntities); err != nil {
		return fmt.Errorf("setting up aggregates: %w", err)
	}
	log.Info("aggregates ready",
		"entry_id", entry.ID,
		"aggregates", len(mgr.List()),
		"excluded", len(entry.Data.ExcludedEntities),
	)
	return nil
}

// issueToken prints a signed API token for subject.
func issueToken(configPath, subject string, ttl time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	token, err := api.IssueToken(cfg.Security.JWT, subject, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	fmt.Println(token)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AREAFANS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AREAFANS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
