package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "propgraph",
		Short: "PropGraph - Attribute graph engine",
		Long: `PropGraph models components as attribute graphs: schemas declare typed
property trees, components instantiate them, and provider sockets wire
component outputs into other components' inputs. Changing a value propagates
through the graph to everything that depends on it.

Features:
  - Schema catalogs written in CUE
  - Context-scoped values (schema < variant < component)
  - Provider sockets and frame composition
  - Dependent-value propagation through a job queue
  - Policy gating of graph mutations via OPA/rego`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newLoadCommand())
	rootCmd.AddCommand(newComponentCommand())
	rootCmd.AddCommand(newConnectCommand())
	rootCmd.AddCommand(newFrameCommand())
	rootCmd.AddCommand(newValuesCommand())
	rootCmd.AddCommand(newProcessCommand())

	return rootCmd
}
