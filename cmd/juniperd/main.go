// juniperd wires the correlation store to its ingest and serving
// boundaries: database + migrations, optional Kafka consumer, optional
// graph projection, and a health endpoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/juniper/config"
	"github.com/Ramsey-B/juniper/pkg/centralrepo"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/graph"
	"github.com/Ramsey-B/juniper/pkg/kafka"
	"github.com/Ramsey-B/juniper/pkg/processor"
	"github.com/Ramsey-B/juniper/pkg/routes/health"
	"github.com/Ramsey-B/juniper/pkg/startup"
	"github.com/Ramsey-B/juniper/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := tracing.Init(ctx, cfg.AppName)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	var (
		db          database.DB
		repo        *centralrepo.CentralRepository
		graphClient *graph.Client
		consumer    *kafka.Consumer
		httpServer  *echo.Echo
		checker     *health.Checker
	)

	manager := startup.New(logger, cfg.StartupMaxAttempts)

	manager.Add(startup.Func{
		DependencyName: "database",
		StartFunc: func(ctx context.Context) error {
			var err error
			db, err = database.Connect(ctx, database.ConnectConfig{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				FilePath:        cfg.DatabaseFilePath,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.MigrateDatabase(db, cfg.DatabaseName); err != nil {
				return err
			}

			repo = centralrepo.New(db, logger)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if repo != nil {
				return repo.Close()
			}
			return nil
		},
	})

	if cfg.GraphEnabled {
		manager.Add(startup.Func{
			DependencyName: "graph",
			Upstream:       []string{"database"},
			StartFunc: func(ctx context.Context) error {
				var err error
				graphClient, err = graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, logger)
				if err != nil {
					return err
				}
				if err := graphClient.VerifyConnectivity(ctx); err != nil {
					return err
				}

				projector := graph.NewProjector(graphClient, repo, logger)
				return projector.ProjectAll(ctx)
			},
			StopFunc: func(ctx context.Context) error {
				if graphClient != nil {
					return graphClient.Close(ctx)
				}
				return nil
			},
		})
	}

	if cfg.KafkaConsumerEnabled {
		manager.Add(startup.Func{
			DependencyName: "kafka-consumer",
			Upstream:       []string{"database"},
			StartFunc: func(ctx context.Context) error {
				proc := processor.New(repo, logger, cfg)
				consumer = kafka.NewConsumer(cfg, logger, proc.HandleMessage)
				return consumer.Start(ctx)
			},
			StopFunc: func(ctx context.Context) error {
				if consumer != nil {
					return consumer.Stop()
				}
				return nil
			},
		})
	}

	manager.Add(startup.Func{
		DependencyName: "http",
		Upstream:       []string{"database"},
		StartFunc: func(ctx context.Context) error {
			httpServer = echo.New()
			httpServer.HideBanner = true

			checker = health.NewChecker(db, graphChecker(cfg, func() *graph.Client { return graphClient }), version())
			checker.RegisterRoutes(httpServer)

			go func() {
				if err := httpServer.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
					logger.WithContext(ctx).WithError(err).Info("http server stopped")
				}
			}()
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if httpServer != nil {
				return httpServer.Shutdown(ctx)
			}
			return nil
		},
	})

	if err := manager.Start(ctx); err != nil {
		return err
	}
	checker.SetReady(true)

	logger.WithContext(ctx).WithFields(map[string]any{
		"app":    cfg.AppName,
		"port":   cfg.Port,
		"driver": cfg.DatabaseDriver,
	}).Info("juniperd started")

	<-ctx.Done()
	checker.SetReady(false)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return manager.Stop(stopCtx)
}

// graphChecker exposes the graph client to the health endpoint once it has
// been started. Returns nil when graph projection is disabled.
func graphChecker(cfg config.Config, get func() *graph.Client) health.GraphPinger {
	if !cfg.GraphEnabled {
		return nil
	}
	return pingerFunc(func(ctx context.Context) error {
		client := get()
		if client == nil {
			return fmt.Errorf("graph client not started")
		}
		return client.VerifyConnectivity(ctx)
	})
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) VerifyConnectivity(ctx context.Context) error { return f(ctx) }

func newLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		line, err := json.Marshal(msg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Println(string(line))
	})
}

func version() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}
