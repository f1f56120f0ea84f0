package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/propgraph/propgraph/pkg/engine"
	"github.com/propgraph/propgraph/pkg/policy"
)

func newConnectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect <from-node> <from-socket> <to-node> <to-socket>",
		Short: "Connect two components socket to socket",
		Long: `Create a configuration connection from one component's output socket to
another component's input socket. The head component's provider starts
consuming the tail component's provider value, and propagation recomputes
everything downstream.

Sockets are named; use 'propgraph values' to inspect what a component exposes.`,
		Example: `  # Feed the database endpoint into the api's config input
  propgraph connect <db-node-id> endpoint <api-node-id> config`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromNodeID := engine.NodeID(args[0])
			fromSocketName := args[1]
			toNodeID := engine.NodeID(args[2])
			toSocketName := args[3]
			ctx := cmd.Context()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			gate, err := newPolicyGate()
			if err != nil {
				return err
			}

			var connection *engine.Connection
			err = rt.engine.WithUnit(ctx, func(u *engine.Unit) error {
				fromComponent, err := u.GetComponentForNode(ctx, fromNodeID)
				if err != nil {
					return err
				}
				toComponent, err := u.GetComponentForNode(ctx, toNodeID)
				if err != nil {
					return err
				}
				fromSocket, err := findProviderSocket(ctx, u, fromComponent.SchemaVariantID, fromSocketName)
				if err != nil {
					return err
				}
				toSocket, err := findProviderSocket(ctx, u, toComponent.SchemaVariantID, toSocketName)
				if err != nil {
					return err
				}

				fromSchema, err := u.GetSchema(ctx, fromComponent.SchemaID)
				if err != nil {
					return err
				}
				toSchema, err := u.GetSchema(ctx, toComponent.SchemaID)
				if err != nil {
					return err
				}

				result, err := gate.EvaluateConnection(ctx, &policy.ConnectionInput{
					FromComponentID: fromComponent.ID,
					FromComponent:   fromComponent.Name,
					FromSchema:      fromSchema.Name,
					FromSocket:      fromSocket.Name,
					ToComponentID:   toComponent.ID,
					ToComponent:     toComponent.Name,
					ToSchema:        toSchema.Name,
					ToSocket:        toSocket.Name,
					EdgeKind:        engine.EdgeKindConfiguration,
				})
				if err != nil {
					return err
				}
				if err := enforce(result); err != nil {
					return err
				}

				connection, err = u.CreateConnection(ctx, fromNodeID, fromSocket.ID, toNodeID, toSocket.ID, engine.EdgeKindConfiguration)
				return err
			})
			if err != nil {
				return err
			}
			if err := rt.drain(ctx); err != nil {
				return err
			}

			fmt.Printf("✓ Connection %s\n", connection.ID)
			return nil
		},
	}

	return cmd
}

// findProviderSocket finds a variant's provider socket by name.
func findProviderSocket(ctx context.Context, u *engine.Unit, variantID engine.SchemaVariantID, name string) (*engine.Socket, error) {
	sockets, err := u.ListSocketsForVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	for _, s := range sockets {
		if s.Kind == engine.SocketKindProvider && s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no provider socket named %q on variant %s", name, variantID)
}
