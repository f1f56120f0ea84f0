package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/propgraph/propgraph/pkg/engine"
	"github.com/propgraph/propgraph/pkg/funcs"
	"github.com/propgraph/propgraph/pkg/jobs"
	"github.com/propgraph/propgraph/pkg/stores"
	"github.com/propgraph/propgraph/pkg/telemetry"
)

const defaultConfigPath = "./propgraph.yaml"

// CLIConfig is the runtime configuration read from propgraph.yaml.
type CLIConfig struct {
	DataDir string `yaml:"data_dir" validate:"required"`

	Database struct {
		Path string `yaml:"path" validate:"required"`
	} `yaml:"database"`

	Telemetry struct {
		Enabled  bool   `yaml:"enabled"`
		LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	} `yaml:"telemetry"`
}

// loadCLIConfig reads and validates the yaml config.
func loadCLIConfig() (*CLIConfig, error) {
	path := configPath
	if path == "" {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s (run 'propgraph init' first): %w", path, err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// runtime bundles the wired engine for one command invocation. The job queue
// is process-local, so mutating commands drain it before exiting.
type runtime struct {
	engine    *engine.Engine
	queue     *jobs.MemoryQueue
	runner    *jobs.Runner
	store     *stores.SQLiteStore
	telemetry *telemetry.Telemetry
}

// openRuntime wires the store, queue, evaluator, and engine from config.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, err
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	opts := []engine.Option{engine.WithLogger(log.Logger)}

	var tel *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		telCfg := telemetry.DefaultConfig()
		if cfg.Telemetry.LogLevel != "" {
			telCfg.Logging.Level = cfg.Telemetry.LogLevel
		}
		// Commands are short-lived, so the exporter side channels stay off.
		telCfg.Tracing.Exporter = "none"
		telCfg.Metrics.Enabled = false
		telCfg.Events.EnableAsync = false

		tel, err = telemetry.NewTelemetry(telCfg)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		opts = append(opts, engine.WithNotifier(telemetry.NewNotifier(tel)))
	}

	queue := jobs.NewMemoryQueue(log.Logger)
	eng := engine.New(store, queue, funcs.NewRegistry(), opts...)
	runner := jobs.NewRunner(eng, queue, log.Logger)

	return &runtime{
		engine:    eng,
		queue:     queue,
		runner:    runner,
		store:     store,
		telemetry: tel,
	}, nil
}

// Close releases the runtime's resources.
func (r *runtime) Close() error {
	if r.telemetry != nil {
		if err := r.telemetry.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}
	return r.store.Close()
}

// drain settles all propagation work enqueued by this invocation.
func (r *runtime) drain(ctx context.Context) error {
	if err := r.runner.Drain(ctx); err != nil {
		return fmt.Errorf("propagation failed: %w", err)
	}
	return nil
}
