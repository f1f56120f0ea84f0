package engine_test

import (
	"context"
	"testing"

	"github.com/propgraph/propgraph/pkg/engine"
)

// frameFixture pairs a configuration frame variant with a child variant whose
// input socket name matches the frame's output socket name.
type configFrameFixture struct {
	frame         *variantFixture
	child         *variantFixture
	frameOut      *engine.Socket
	childIn       *engine.Socket
	childProvider *engine.InternalProvider
	frameProvider *engine.ExternalProvider
}

func buildConfigFrameFixture(t *testing.T, u *engine.Unit) *configFrameFixture {
	t.Helper()
	ctx := context.Background()

	frame := buildVariant(t, u, "network")
	child := buildVariant(t, u, "service")

	if _, err := u.CreateFrameSocket(ctx, frame.variant.ID, engine.SocketEdgeKindConfigurationInput); err != nil {
		t.Fatalf("Expected frame socket creation to succeed, got: %v", err)
	}
	if _, err := u.CreateFrameSocket(ctx, child.variant.ID, engine.SocketEdgeKindConfigurationOutput); err != nil {
		t.Fatalf("Expected frame socket creation to succeed, got: %v", err)
	}

	frameProvider, frameOut, err := u.NewExternalProviderWithSocket(ctx, frame.variant.ID, "subnet", frame.name.ID, engine.SocketArityMany)
	if err != nil {
		t.Fatalf("Expected external provider creation to succeed, got: %v", err)
	}
	childProvider, childIn, err := u.NewExplicitInternalProviderWithSocket(ctx, child.variant.ID, "subnet", engine.SocketArityOne)
	if err != nil {
		t.Fatalf("Expected internal provider creation to succeed, got: %v", err)
	}

	return &configFrameFixture{
		frame:         frame,
		child:         child,
		frameOut:      frameOut,
		childIn:       childIn,
		childProvider: childProvider,
		frameProvider: frameProvider,
	}
}

func TestAttachComponentToFrame_ConfigurationNameMatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	u := begin(t, eng)
	defer u.Rollback(context.Background())
	ctx := context.Background()
	f := buildConfigFrameFixture(t, u)

	frameComponent, frameNode, err := u.CreateComponentWithNode(ctx, f.frame.variant.ID, "net-1")
	if err != nil {
		t.Fatalf("Expected frame component creation to succeed, got: %v", err)
	}
	if err := u.SetComponentType(ctx, frameComponent.ID, engine.ComponentTypeConfigurationFrame); err != nil {
		t.Fatalf("Expected type change to succeed, got: %v", err)
	}
	childComponent, childNode, err := u.CreateComponentWithNode(ctx, f.child.variant.ID, "svc-1")
	if err != nil {
		t.Fatalf("Expected child component creation to succeed, got: %v", err)
	}

	symbolic, err := u.AttachComponentToFrame(ctx, childNode.ID, frameNode.ID)
	if err != nil {
		t.Fatalf("Expected frame attach to succeed, got: %v", err)
	}
	if symbolic.Kind != engine.EdgeKindSymbolic {
		t.Errorf("Expected symbolic connection, got %s", symbolic.Kind)
	}
	if symbolic.FromNodeID != childNode.ID || symbolic.ToNodeID != frameNode.ID {
		t.Errorf("Expected symbolic connection child -> frame, got %s -> %s",
			symbolic.FromNodeID, symbolic.ToNodeID)
	}

	// The matching socket names produce one configuration connection from the
	// frame's output to the child's input.
	connections, err := u.ListConnectionsForNode(ctx, childNode.ID)
	if err != nil {
		t.Fatalf("Expected connection listing to succeed, got: %v", err)
	}
	var configuration *engine.Connection
	for _, c := range connections {
		if c.Kind == engine.EdgeKindConfiguration {
			if configuration != nil {
				t.Fatalf("Expected a single configuration connection, got a second: %s", c.ID)
			}
			configuration = c
		}
	}
	if configuration == nil {
		t.Fatal("Expected a configuration connection, got none")
	}
	if configuration.FromNodeID != frameNode.ID || configuration.FromSocketID != f.frameOut.ID {
		t.Errorf("Expected configuration connection from frame socket %s, got node %s socket %s",
			f.frameOut.ID, configuration.FromNodeID, configuration.FromSocketID)
	}
	if configuration.ToNodeID != childNode.ID || configuration.ToSocketID != f.childIn.ID {
		t.Errorf("Expected configuration connection to child socket %s, got node %s socket %s",
			f.childIn.ID, configuration.ToNodeID, configuration.ToSocketID)
	}

	// The child's provider value is enqueued so the new input propagates.
	headValue := findValue(t, u, engine.AttributeReadContext{
		InternalProviderID: &f.childProvider.ID,
		ComponentID:        &childComponent.ID,
	})
	var enqueued bool
	for _, root := range u.Roots() {
		if root == headValue.ID {
			enqueued = true
		}
	}
	if !enqueued {
		t.Errorf("Expected head provider value %s among roots %v", headValue.ID, u.Roots())
	}
}

func TestAttachComponentToFrame_ConfigurationNoNameMatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	u := begin(t, eng)
	defer u.Rollback(context.Background())
	ctx := context.Background()

	frame := buildVariant(t, u, "network")
	child := buildVariant(t, u, "service")
	if _, err := u.CreateFrameSocket(ctx, frame.variant.ID, engine.SocketEdgeKindConfigurationInput); err != nil {
		t.Fatalf("Expected frame socket creation to succeed, got: %v", err)
	}
	if _, err := u.CreateFrameSocket(ctx, child.variant.ID, engine.SocketEdgeKindConfigurationOutput); err != nil {
		t.Fatalf("Expected frame socket creation to succeed, got: %v", err)
	}
	// Disjoint socket names: the frame exposes "subnet", the child listens
	// for "region".
	if _, _, err := u.NewExternalProviderWithSocket(ctx, frame.variant.ID, "subnet", frame.name.ID, engine.SocketArityMany); err != nil {
		t.Fatalf("Expected external provider creation to succeed, got: %v", err)
	}
	if _, _, err := u.NewExplicitInternalProviderWithSocket(ctx, child.variant.ID, "region", engine.SocketArityOne); err != nil {
		t.Fatalf("Expected internal provider creation to succeed, got: %v", err)
	}

	frameComponent, frameNode, err := u.CreateComponentWithNode(ctx, frame.variant.ID, "net-1")
	if err != nil {
		t.Fatalf("Expected frame component creation to succeed, got: %v", err)
	}
	if err := u.SetComponentType(ctx, frameComponent.ID, engine.ComponentTypeConfigurationFrame); err != nil {
		t.Fatalf("Expected type change to succeed, got: %v", err)
	}
	_, childNode, err := u.CreateComponentWithNode(ctx, child.variant.ID, "svc-1")
	if err != nil {
		t.Fatalf("Expected child component creation to succeed, got: %v", err)
	}

	symbolic, err := u.AttachComponentToFrame(ctx, childNode.ID, frameNode.ID)
	if err != nil {
		t.Fatalf("Expected attach with no name match to succeed, got: %v", err)
	}
	if symbolic == nil || symbolic.Kind != engine.EdgeKindSymbolic {
		t.Fatalf("Expected a symbolic connection, got %+v", symbolic)
	}

	// No matching pair means no configuration wiring, and no error either.
	connections, err := u.ListConnectionsForNode(ctx, childNode.ID)
	if err != nil {
		t.Fatalf("Expected connection listing to succeed, got: %v", err)
	}
	for _, c := range connections {
		if c.Kind == engine.EdgeKindConfiguration {
			t.Errorf("Expected no configuration connections, got %s %s -> %s",
				c.ID, c.FromNodeID, c.ToNodeID)
		}
	}
}

func TestAttachComponentToFrame_PlainParentRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	var frameNodeID, childNodeID engine.NodeID
	err := eng.WithUnit(ctx, func(u *engine.Unit) error {
		f := buildConfigFrameFixture(t, u)
		_, frameNode, err := u.CreateComponentWithNode(ctx, f.frame.variant.ID, "net-1")
		if err != nil {
			return err
		}
		_, childNode, err := u.CreateComponentWithNode(ctx, f.child.variant.ID, "svc-1")
		if err != nil {
			return err
		}
		frameNodeID = frameNode.ID
		childNodeID = childNode.ID
		return nil
	})
	if err != nil {
		t.Fatalf("Expected setup to commit, got: %v", err)
	}

	// The parent keeps its plain type, so the attach fails and the unit rolls
	// back, including the symbolic connection created before the type check.
	err = eng.WithUnit(ctx, func(u *engine.Unit) error {
		_, err := u.AttachComponentToFrame(ctx, childNodeID, frameNodeID)
		return err
	})
	if code := errCode(err); code != engine.ErrCodeInvalidComponentTypeForFrame {
		t.Fatalf("Expected code %s, got %s (err: %v)", engine.ErrCodeInvalidComponentTypeForFrame, code, err)
	}

	u := begin(t, eng)
	defer u.Rollback(ctx)
	connections, err := u.ListConnectionsForNode(ctx, childNodeID)
	if err != nil {
		t.Fatalf("Expected connection listing to succeed, got: %v", err)
	}
	if len(connections) != 0 {
		t.Errorf("Expected no connections to survive the rollback, got %d", len(connections))
	}
}

func TestAttachComponentToFrame_AggregationFanIn(t *testing.T) {
	eng, _ := newTestEngine(t)
	u := begin(t, eng)
	defer u.Rollback(context.Background())
	ctx := context.Background()

	// Aggregation frames wire their own sockets to each child, so parent and
	// children share a variant here.
	f := buildVariant(t, u, "cluster")
	if _, err := u.CreateFrameSocket(ctx, f.variant.ID, engine.SocketEdgeKindConfigurationInput); err != nil {
		t.Fatalf("Expected frame socket creation to succeed, got: %v", err)
	}
	if _, err := u.CreateFrameSocket(ctx, f.variant.ID, engine.SocketEdgeKindConfigurationOutput); err != nil {
		t.Fatalf("Expected frame socket creation to succeed, got: %v", err)
	}
	membersProvider, membersSocket, err := u.NewExplicitInternalProviderWithSocket(ctx, f.variant.ID, "members", engine.SocketArityMany)
	if err != nil {
		t.Fatalf("Expected internal provider creation to succeed, got: %v", err)
	}
	_, resultSocket, err := u.NewExternalProviderWithSocket(ctx, f.variant.ID, "result", engine.NonePropID, engine.SocketArityMany)
	if err != nil {
		t.Fatalf("Expected external provider creation to succeed, got: %v", err)
	}

	frameComponent, frameNode, err := u.CreateComponentWithNode(ctx, f.variant.ID, "cluster-1")
	if err != nil {
		t.Fatalf("Expected frame component creation to succeed, got: %v", err)
	}
	if err := u.SetComponentType(ctx, frameComponent.ID, engine.ComponentTypeAggregationFrame); err != nil {
		t.Fatalf("Expected type change to succeed, got: %v", err)
	}

	childNodes := make([]engine.NodeID, 0, 2)
	for _, name := range []string{"member-1", "member-2"} {
		_, node, err := u.CreateComponentWithNode(ctx, f.variant.ID, name)
		if err != nil {
			t.Fatalf("Expected child component creation to succeed, got: %v", err)
		}
		childNodes = append(childNodes, node.ID)
		if _, err := u.AttachComponentToFrame(ctx, node.ID, frameNode.ID); err != nil {
			t.Fatalf("Expected frame attach to succeed, got: %v", err)
		}
	}

	connections, err := u.ListConnectionsForNode(ctx, frameNode.ID)
	if err != nil {
		t.Fatalf("Expected connection listing to succeed, got: %v", err)
	}
	var fanIn, fanOut, symbolic int
	for _, c := range connections {
		switch {
		case c.Kind == engine.EdgeKindSymbolic:
			symbolic++
		case c.FromSocketID == membersSocket.ID && c.ToSocketID == membersSocket.ID && c.ToNodeID == frameNode.ID:
			fanIn++
		case c.FromSocketID == resultSocket.ID && c.ToSocketID == resultSocket.ID && c.FromNodeID == frameNode.ID:
			fanOut++
		default:
			t.Errorf("Unexpected connection %s: %s %s -> %s %s",
				c.ID, c.Kind, c.FromNodeID, c.ToNodeID, c.ToSocketID)
		}
	}
	if symbolic != 2 {
		t.Errorf("Expected 2 symbolic connections, got %d", symbolic)
	}
	if fanIn != 2 {
		t.Errorf("Expected 2 fan-in connections on the members socket, got %d", fanIn)
	}
	if fanOut != 2 {
		t.Errorf("Expected 2 fan-out connections on the result socket, got %d", fanOut)
	}

	// The frame's own provider value is enqueued for each fan-in edge.
	frameMembersValue := findValue(t, u, engine.AttributeReadContext{
		InternalProviderID: &membersProvider.ID,
		ComponentID:        &frameComponent.ID,
	})
	var enqueued bool
	for _, root := range u.Roots() {
		if root == frameMembersValue.ID {
			enqueued = true
		}
	}
	if !enqueued {
		t.Errorf("Expected frame provider value %s among roots %v", frameMembersValue.ID, u.Roots())
	}
	if len(childNodes) != 2 {
		t.Fatalf("Expected 2 children, got %d", len(childNodes))
	}
}
