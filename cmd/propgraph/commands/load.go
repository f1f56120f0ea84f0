package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/propgraph/propgraph/pkg/catalog"
)

func newLoadCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "load <catalog>...",
		Short: "Load a CUE schema catalog",
		Long: `Load one or more CUE catalog files or directories, creating the schemas,
variants, prop trees, providers, and sockets they declare.

With --watch the command keeps running and reloads the catalog whenever a
source file changes. Reloading creates new variants; existing components keep
resolving against the variant they were built from.`,
		Example: `  # Load a catalog directory
  propgraph load ./catalog

  # Load and keep reloading on change
  propgraph load --watch ./catalog`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			loader := catalog.NewLoader(rt.engine, log.Logger)
			result, err := loader.Load(ctx, args)
			if err != nil {
				return err
			}
			if err := rt.drain(ctx); err != nil {
				return err
			}
			printLoadResult(result)

			if !watch {
				return nil
			}

			err = loader.Watch(ctx, args, func(result *catalog.LoadResult) {
				if err := rt.drain(ctx); err != nil {
					log.Error().Err(err).Msg("Propagation after reload failed")
					return
				}
				printLoadResult(result)
			})
			if err != nil {
				return err
			}
			defer loader.StopWatching()

			log.Info().Msg("Watching catalog for changes, Ctrl-C to stop")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "reload the catalog when source files change")

	return cmd
}

func printLoadResult(result *catalog.LoadResult) {
	for _, schema := range result.Schemas {
		fmt.Printf("✓ Schema %s (%s)\n", schema.Name, schema.ID)
		for _, variant := range schema.Variants {
			fmt.Printf("    variant %s (%s), %d props\n", variant.Name, variant.ID, variant.Props)
		}
	}
}
