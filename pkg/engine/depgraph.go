package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DependencyGraph summarizes how a component's values feed each other:
// provider values flow into the prototypes that consume them, and child
// values roll up into their parents. Levels group values that do not depend
// on each other, in the order propagation settles them.
type DependencyGraph struct {
	// Nodes maps value IDs to their graph nodes.
	Nodes map[AttributeValueID]*DependencyNode

	// Edges are the dependency edges, tail feeding head.
	Edges []DependencyEdge

	// Roots are the values nothing in the graph feeds.
	Roots []AttributeValueID

	// Levels are the topological levels. Values in one level are mutually
	// independent.
	Levels [][]AttributeValueID

	// Cyclic lists values caught in dependency cycles. Propagation still
	// terminates on cycles through its visited set, so a cycle is reported,
	// not rejected.
	Cyclic []AttributeValueID
}

// DependencyNode is one value in the dependency graph.
type DependencyNode struct {
	// ID is the value's identifier.
	ID AttributeValueID

	// Context describes where the value lives.
	Context AttributeContext

	// Level is the node's topological level, -1 for cyclic nodes.
	Level int

	// Dependencies are the values feeding this one.
	Dependencies []AttributeValueID

	// Dependents are the values this one feeds.
	Dependents []AttributeValueID
}

// DependencyEdgeKind classifies dependency edges.
type DependencyEdgeKind string

const (
	// DependencyEdgeArgument is a provider value feeding a consuming
	// prototype's value.
	DependencyEdgeArgument DependencyEdgeKind = "argument"

	// DependencyEdgeParent is a child value rolling up into its parent.
	DependencyEdgeParent DependencyEdgeKind = "parent"
)

// DependencyEdge is one dependency, From feeding To.
type DependencyEdge struct {
	From AttributeValueID   `json:"from"`
	To   AttributeValueID   `json:"to"`
	Kind DependencyEdgeKind `json:"kind"`
}

// BuildDependencyGraph builds the dependency graph of a component's own
// values. Edges leaving the component's scope are not followed; the graph
// answers "what settles in which order when this component changes".
func (u *Unit) BuildDependencyGraph(ctx context.Context, componentID ComponentID) (*DependencyGraph, error) {
	values, err := u.ListValuesForComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}

	graph := &DependencyGraph{
		Nodes: make(map[AttributeValueID]*DependencyNode, len(values)),
	}
	for _, value := range values {
		graph.Nodes[value.ID] = &DependencyNode{
			ID:      value.ID,
			Context: value.Context,
			Level:   -1,
		}
	}

	addEdge := func(from, to AttributeValueID, kind DependencyEdgeKind) {
		tail, ok := graph.Nodes[from]
		if !ok {
			return
		}
		head, ok := graph.Nodes[to]
		if !ok {
			return
		}
		graph.Edges = append(graph.Edges, DependencyEdge{From: from, To: to, Kind: kind})
		tail.Dependents = append(tail.Dependents, to)
		head.Dependencies = append(head.Dependencies, from)
	}

	for _, value := range values {
		consumers, err := u.consumersOf(ctx, value)
		if err != nil {
			return nil, err
		}
		for _, consumer := range consumers {
			addEdge(value.ID, consumer.ID, DependencyEdgeArgument)
		}
		if value.ParentAttributeValueID != NoneAttributeValueID {
			addEdge(value.ID, value.ParentAttributeValueID, DependencyEdgeParent)
		}
	}

	graph.computeLevels()
	return graph, nil
}

// computeLevels runs Kahn's algorithm with level tracking. Nodes still
// holding incoming edges when the frontier empties are cyclic.
func (g *DependencyGraph) computeLevels() {
	inDegree := make(map[AttributeValueID]int, len(g.Nodes))
	for id, node := range g.Nodes {
		inDegree[id] = len(node.Dependencies)
	}

	currentLevel := make([]AttributeValueID, 0)
	for id, degree := range inDegree {
		if degree == 0 {
			currentLevel = append(currentLevel, id)
		}
	}
	sortValueIDs(currentLevel)
	g.Roots = append([]AttributeValueID(nil), currentLevel...)

	processed := 0
	for len(currentLevel) > 0 {
		level := len(g.Levels)
		g.Levels = append(g.Levels, currentLevel)
		processed += len(currentLevel)

		nextLevel := make([]AttributeValueID, 0)
		for _, id := range currentLevel {
			g.Nodes[id].Level = level
			for _, dependent := range g.Nodes[id].Dependents {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}
		sortValueIDs(nextLevel)
		currentLevel = nextLevel
	}

	if processed != len(g.Nodes) {
		for id, degree := range inDegree {
			if degree > 0 {
				g.Cyclic = append(g.Cyclic, id)
			}
		}
		sortValueIDs(g.Cyclic)
	}
}

// Depth returns the number of topological levels.
func (g *DependencyGraph) Depth() int {
	return len(g.Levels)
}

// ToDOT renders the graph in DOT format for Graphviz tools.
func (g *DependencyGraph) ToDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph values {\n")
	sb.WriteString("  rankdir=LR;\n")

	ids := make([]AttributeValueID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sortValueIDs(ids)
	for _, id := range ids {
		node := g.Nodes[id]
		label := fmt.Sprintf("%s\\n%s", shortID(string(id)), node.Context.Discriminator.String())
		sb.WriteString(fmt.Sprintf("  %q [label=%q];\n", id, label))
	}
	for _, edge := range g.Edges {
		style := ""
		if edge.Kind == DependencyEdgeParent {
			style = " [style=dashed]"
		}
		sb.WriteString(fmt.Sprintf("  %q -> %q%s;\n", edge.From, edge.To, style))
	}
	sb.WriteString("}\n")
	return sb.String()
}

func sortValueIDs(ids []AttributeValueID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
