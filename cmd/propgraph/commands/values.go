package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/propgraph/propgraph/pkg/engine"
)

func newValuesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "values",
		Short: "Inspect and set component values",
	}
	cmd.AddCommand(newValuesListCommand())
	cmd.AddCommand(newValuesSetCommand())
	cmd.AddCommand(newValuesGraphCommand())
	return cmd
}

func newValuesGraphCommand() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "graph <component-id>",
		Short: "Show the dependency order of a component's values",
		Long: `Build the dependency graph of a component's values and print the
topological levels propagation settles them in. With --dot the graph is
printed in DOT format for Graphviz.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			componentID := engine.ComponentID(args[0])
			ctx := cmd.Context()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			var graph *engine.DependencyGraph
			err = rt.engine.WithUnit(ctx, func(u *engine.Unit) error {
				graph, err = u.BuildDependencyGraph(ctx, componentID)
				return err
			})
			if err != nil {
				return err
			}

			if dot {
				fmt.Print(graph.ToDOT())
				return nil
			}

			for level, ids := range graph.Levels {
				fmt.Printf("level %d:\n", level)
				for _, id := range ids {
					fmt.Printf("  %s  %s\n", id, graph.Nodes[id].Context.Discriminator)
				}
			}
			if len(graph.Cyclic) > 0 {
				fmt.Println("cyclic:")
				for _, id := range graph.Cyclic {
					fmt.Printf("  %s\n", id)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "print the graph in DOT format")

	return cmd
}

func newValuesListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <component-id>",
		Short: "List a component's values with their resolved results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			componentID := engine.ComponentID(args[0])
			ctx := cmd.Context()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			type row struct {
				ID       engine.AttributeValueID `json:"id"`
				Context  string                  `json:"context"`
				Key      string                  `json:"key,omitempty"`
				Sealed   bool                    `json:"sealed,omitempty"`
				Resolved json.RawMessage         `json:"resolved"`
			}
			var rows []row

			err = rt.engine.WithUnit(ctx, func(u *engine.Unit) error {
				values, err := u.ListValuesForComponent(ctx, componentID)
				if err != nil {
					return err
				}
				for _, v := range values {
					raw, err := u.ResolveValue(ctx, v.ID)
					if err != nil {
						return err
					}
					rows = append(rows, row{
						ID:       v.ID,
						Context:  v.Context.Discriminator.String(),
						Key:      v.Key,
						Sealed:   v.SealedProxy,
						Resolved: raw,
					})
				}
				return nil
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				out, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			for _, r := range rows {
				sealed := ""
				if r.Sealed {
					sealed = " (sealed)"
				}
				fmt.Printf("%s  %s%s  %s\n", r.ID, r.Context, sealed, r.Resolved)
			}
			return nil
		},
	}

	return cmd
}

func newValuesSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <component-id> <prop-path> <json>",
		Short: "Set a prop value at the component scope",
		Long: `Set a prop's value on one component. The prop path is dotted and rooted
at the variant's root prop. The override seals the component's proxy, so later
edits at the variant level no longer flow into this component for that prop.`,
		Example: `  # Pin the image on one component
  propgraph values set <component-id> root.domain.image '"nginx:1.25"'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			componentID := engine.ComponentID(args[0])
			propPath := args[1]
			raw := json.RawMessage(args[2])
			ctx := cmd.Context()

			if !json.Valid(raw) {
				return fmt.Errorf("value is not valid JSON: %s", raw)
			}

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			var value *engine.AttributeValue
			err = rt.engine.WithUnit(ctx, func(u *engine.Unit) error {
				component, err := u.GetComponent(ctx, componentID)
				if err != nil {
					return err
				}
				propID, err := resolvePropPath(ctx, u, component.SchemaVariantID, propPath)
				if err != nil {
					return err
				}
				avCtx, err := engine.NewContextBuilder().
					SetPropID(propID).
					SetSchemaID(component.SchemaID).
					SetSchemaVariantID(component.SchemaVariantID).
					SetComponentID(component.ID).
					ToContext()
				if err != nil {
					return err
				}
				value, err = u.SetValueForContext(ctx, avCtx, raw)
				return err
			})
			if err != nil {
				return err
			}
			if err := rt.drain(ctx); err != nil {
				return err
			}

			fmt.Printf("✓ Value %s set\n", value.ID)
			return nil
		},
	}

	return cmd
}

// resolvePropPath walks the variant's prop tree by dotted path.
func resolvePropPath(ctx context.Context, u *engine.Unit, variantID engine.SchemaVariantID, path string) (engine.PropID, error) {
	props, err := u.ListPropsForVariant(ctx, variantID)
	if err != nil {
		return engine.NonePropID, err
	}

	propID := engine.NonePropID
	for _, name := range strings.Split(path, ".") {
		found := false
		for _, p := range props {
			if p.Name == name && p.ParentID == propID {
				propID = p.ID
				found = true
				break
			}
		}
		if !found {
			return engine.NonePropID, fmt.Errorf("prop %q not found under path %q", name, path)
		}
	}
	return propID, nil
}
