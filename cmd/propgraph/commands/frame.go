package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/propgraph/propgraph/pkg/engine"
	"github.com/propgraph/propgraph/pkg/policy"
)

func newFrameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Manage frame composition",
	}
	cmd.AddCommand(newFrameAttachCommand())
	cmd.AddCommand(newFrameTypeCommand())
	return cmd
}

func newFrameAttachCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach <child-node> <parent-node>",
		Short: "Attach a component to a frame",
		Long: `Attach a child component to a parent frame. Configuration frames push
their matching output sockets into the child's inputs; aggregation frames
fan the child's providers in and out through their own sockets.`,
		Example: `  # Put the service inside the network frame
  propgraph frame attach <service-node-id> <network-node-id>`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			childNodeID := engine.NodeID(args[0])
			parentNodeID := engine.NodeID(args[1])
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
				child, err := u.GetComponentForNode(ctx, childNodeID)
				if err != nil {
					return err
				}
				parent, err := u.GetComponentForNode(ctx, parentNodeID)
				if err != nil {
					return err
				}

				result, err := gate.EvaluateFrame(ctx, &policy.FrameInput{
					ParentComponentID: parent.ID,
					ParentComponent:   parent.Name,
					ParentType:        parent.Type,
					ChildComponentID:  child.ID,
					ChildComponent:    child.Name,
					ChildType:         child.Type,
				})
				if err != nil {
					return err
				}
				if err := enforce(result); err != nil {
					return err
				}

				connection, err = u.AttachComponentToFrame(ctx, childNodeID, parentNodeID)
				return err
			})
			if err != nil {
				return err
			}
			if err := rt.drain(ctx); err != nil {
				return err
			}

			fmt.Printf("✓ Attached, frame connection %s\n", connection.ID)
			return nil
		},
	}

	return cmd
}

func newFrameTypeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type <node> <type>",
		Short: "Set a component's type",
		Long: `Set a component's type: component, configurationFrame, or
aggregationFrame. Only frames accept children.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID := engine.NodeID(args[0])
			componentType := engine.ComponentType(args[1])
			ctx := cmd.Context()

			switch componentType {
			case engine.ComponentTypePlain, engine.ComponentTypeConfigurationFrame, engine.ComponentTypeAggregationFrame:
			default:
				return fmt.Errorf("unknown component type %q", componentType)
			}

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			err = rt.engine.WithUnit(ctx, func(u *engine.Unit) error {
				component, err := u.GetComponentForNode(ctx, nodeID)
				if err != nil {
					return err
				}
				return u.SetComponentType(ctx, component.ID, componentType)
			})
			if err != nil {
				return err
			}

			fmt.Printf("✓ Component type set to %s\n", componentType)
			return nil
		},
	}

	return cmd
}
