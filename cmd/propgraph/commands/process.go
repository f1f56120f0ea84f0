package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newProcessCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the propagation worker loop",
		Long: `Run the dependent-values worker until interrupted. The worker polls the
job queue and recomputes everything downstream of each update's roots.

Useful with a long-lived process that keeps enqueueing work, such as
'propgraph load --watch' in the same service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			log.Info().Dur("interval", interval).Msg("Processing dependent value updates, Ctrl-C to stop")
			if err := rt.runner.Run(ctx, interval); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "queue poll interval")

	return cmd
}
