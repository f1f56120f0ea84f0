package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/propgraph/propgraph/pkg/engine"
	"github.com/propgraph/propgraph/pkg/policy"
)

func newComponentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "component",
		Short: "Manage components",
	}
	cmd.AddCommand(newComponentCreateCommand())
	return cmd
}

func newComponentCreateCommand() *cobra.Command {
	var variantID string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a component from a schema variant",
		Long: `Create a component and its diagram node from a schema variant. The
component gets its own proxy of every variant-level value, so reads at the
component scope resolve immediately and overrides stay local to it.`,
		Example: `  # Create a component named web from a loaded variant
  propgraph component create web --variant 4f1c...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
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
			result, err := gate.EvaluateComponent(ctx, &policy.ComponentInput{
				Name: name,
				Type: engine.ComponentTypePlain,
			})
			if err != nil {
				return err
			}
			if err := enforce(result); err != nil {
				return err
			}

			var component *engine.Component
			var node *engine.Node
			err = rt.engine.WithUnit(ctx, func(u *engine.Unit) error {
				component, node, err = u.CreateComponentWithNode(ctx, engine.SchemaVariantID(variantID), name)
				return err
			})
			if err != nil {
				return err
			}
			if err := rt.drain(ctx); err != nil {
				return err
			}

			fmt.Printf("✓ Component %s (%s)\n", component.Name, component.ID)
			fmt.Printf("    node %s\n", node.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&variantID, "variant", "", "schema variant id to instantiate")
	cmd.MarkFlagRequired("variant")

	return cmd
}
