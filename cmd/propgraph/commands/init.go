package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/propgraph/propgraph/pkg/stores"
)

func newInitCommand() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a propgraph workspace",
		Long: `Initialize a new propgraph workspace: data directory, SQLite database with
migrations applied, and a default config file.`,
		Example: `  # Initialize a workspace in ./data
  propgraph init

  # Initialize with a custom data directory and config path
  propgraph init --data-dir /var/lib/propgraph --config /etc/propgraph/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().Str("data_dir", dataDir).Msg("Initializing workspace")

			ctx := context.Background()

			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dataDir, err)
			}
			fmt.Printf("✓ Created directory: %s\n", dataDir)

			dbPath := filepath.Join(dataDir, "propgraph.db")
			store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close store: %w", err)
			}
			fmt.Printf("✓ Initialized SQLite database: %s\n", dbPath)

			defaultConfig := `# PropGraph configuration

data_dir: %s

database:
  path: %s

telemetry:
  enabled: true
  log_level: info
`
			configContent := fmt.Sprintf(defaultConfig, dataDir, dbPath)

			if configPath == "" {
				configPath = defaultConfigPath
			}
			if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Printf("✓ Created config file: %s\n", configPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "workspace data directory")

	return cmd
}
