package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/propgraph/propgraph/pkg/engine"
)

func TestBuildDependencyGraph_LevelsAndEdges(t *testing.T) {
	eng, _ := newTestEngine(t)
	u := begin(t, eng)
	ctx := context.Background()

	fx := buildVariant(t, u, "service")
	_, _, err := u.NewExternalProviderWithSocket(ctx, fx.variant.ID, "endpoint", fx.name.ID, engine.SocketArityMany)
	if err != nil {
		t.Fatalf("Expected external provider creation to succeed, got: %v", err)
	}
	component, _, err := u.CreateComponentWithNode(ctx, fx.variant.ID, "web")
	if err != nil {
		t.Fatalf("Expected component creation to succeed, got: %v", err)
	}

	graph, err := u.BuildDependencyGraph(ctx, component.ID)
	if err != nil {
		t.Fatalf("Expected graph build to succeed, got: %v", err)
	}

	if len(graph.Nodes) == 0 {
		t.Fatal("Expected graph nodes for the component's values")
	}
	if len(graph.Cyclic) != 0 {
		t.Errorf("Expected no cycles, got %d cyclic values", len(graph.Cyclic))
	}
	if graph.Depth() < 2 {
		t.Errorf("Expected at least 2 levels, got %d", graph.Depth())
	}
	if len(graph.Roots) == 0 {
		t.Error("Expected root values")
	}
	for id, node := range graph.Nodes {
		if node.Level < 0 {
			t.Errorf("Expected acyclic node %s to have a level, got %d", id, node.Level)
		}
	}

	var nameNode, domainNode *engine.DependencyNode
	for _, node := range graph.Nodes {
		if node.Context.Discriminator.Kind != engine.DiscriminatorProp {
			continue
		}
		switch node.Context.PropID() {
		case fx.name.ID:
			nameNode = node
		case fx.domain.ID:
			domainNode = node
		}
	}
	if nameNode == nil || domainNode == nil {
		t.Fatal("Expected prop value nodes for name and domain")
	}
	if nameNode.Level >= domainNode.Level {
		t.Errorf("Expected name (level %d) to settle before its parent domain (level %d)", nameNode.Level, domainNode.Level)
	}

	foundParent := false
	foundArgument := false
	for _, edge := range graph.Edges {
		if edge.Kind == engine.DependencyEdgeParent && edge.From == nameNode.ID && edge.To == domainNode.ID {
			foundParent = true
		}
		if edge.Kind == engine.DependencyEdgeArgument {
			to := graph.Nodes[edge.To]
			if to != nil && to.Context.Discriminator.Kind == engine.DiscriminatorExternalProvider {
				foundArgument = true
			}
		}
	}
	if !foundParent {
		t.Error("Expected a parent edge from name to domain")
	}
	if !foundArgument {
		t.Error("Expected an argument edge into the external provider value")
	}
}

func TestBuildDependencyGraph_UnknownComponentIsEmpty(t *testing.T) {
	eng, _ := newTestEngine(t)
	u := begin(t, eng)

	graph, err := u.BuildDependencyGraph(context.Background(), engine.ComponentID("missing"))
	if err != nil {
		t.Fatalf("Expected empty graph, got: %v", err)
	}
	if len(graph.Nodes) != 0 || len(graph.Edges) != 0 || graph.Depth() != 0 {
		t.Errorf("Expected empty graph, got %d nodes, %d edges, depth %d", len(graph.Nodes), len(graph.Edges), graph.Depth())
	}
}

func TestDependencyGraph_ToDOT(t *testing.T) {
	eng, _ := newTestEngine(t)
	u := begin(t, eng)
	ctx := context.Background()

	fx := buildVariant(t, u, "service")
	component, _, err := u.CreateComponentWithNode(ctx, fx.variant.ID, "web")
	if err != nil {
		t.Fatalf("Expected component creation to succeed, got: %v", err)
	}

	graph, err := u.BuildDependencyGraph(ctx, component.ID)
	if err != nil {
		t.Fatalf("Expected graph build to succeed, got: %v", err)
	}

	dot := graph.ToDOT()
	if !strings.HasPrefix(dot, "digraph values {") {
		t.Errorf("Expected DOT output, got: %s", dot)
	}
	for id := range graph.Nodes {
		if !strings.Contains(dot, string(id)) {
			t.Errorf("Expected DOT output to mention node %s", id)
		}
	}
	if !strings.Contains(dot, "style=dashed") {
		t.Error("Expected parent edges rendered dashed")
	}
}
