package engine_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/propgraph/propgraph/pkg/engine"
	"github.com/propgraph/propgraph/pkg/jobs"
)

// TestPropagation_ConnectionEndToEnd drives a value from a producer
// component's prop through its external provider, over a configuration
// connection, into a consumer component's internal provider and finally into
// the prop wired to that provider.
func TestPropagation_ConnectionEndToEnd(t *testing.T) {
	eng, queue := newTestEngine(t)
	runner := jobs.NewRunner(eng, queue, zerolog.Nop())
	ctx := context.Background()

	var (
		producer, consumer *variantFixture
		intProvider        *engine.InternalProvider
		prodComponentID    engine.ComponentID
		consComponentID    engine.ComponentID
	)
	err := eng.WithUnit(ctx, func(u *engine.Unit) error {
		producer = buildVariant(t, u, "producer")
		consumer = buildVariant(t, u, "consumer")

		_, outSocket, err := u.NewExternalProviderWithSocket(ctx, producer.variant.ID, "endpoint", producer.name.ID, engine.SocketArityMany)
		if err != nil {
			return err
		}
		provider, inSocket, err := u.NewExplicitInternalProviderWithSocket(ctx, consumer.variant.ID, "endpoint", engine.SocketArityOne)
		if err != nil {
			return err
		}
		intProvider = provider

		// The consumer's name prop takes its value from the provider.
		nameID := consumer.name.ID
		none := engine.NoneComponentID
		nameValue := findValue(t, u, engine.AttributeReadContext{PropID: &nameID, ComponentID: &none})
		if err := u.SetPrototypeFunc(ctx, nameValue.AttributePrototypeID, engine.FuncIdentity, nil); err != nil {
			return err
		}
		if _, err := u.BindPrototypeArgument(ctx, nameValue.AttributePrototypeID, "value", provider.ID, engine.NoneExternalProviderID); err != nil {
			return err
		}

		prodComponent, prodNode, err := u.CreateComponentWithNode(ctx, producer.variant.ID, "prod-1")
		if err != nil {
			return err
		}
		consComponent, consNode, err := u.CreateComponentWithNode(ctx, consumer.variant.ID, "cons-1")
		if err != nil {
			return err
		}
		prodComponentID = prodComponent.ID
		consComponentID = consComponent.ID

		_, err = u.CreateConnection(ctx, prodNode.ID, outSocket.ID, consNode.ID, inSocket.ID, engine.EdgeKindConfiguration)
		return err
	})
	if err != nil {
		t.Fatalf("Expected setup to commit, got: %v", err)
	}
	if err := runner.Drain(ctx); err != nil {
		t.Fatalf("Expected drain to succeed, got: %v", err)
	}

	err = eng.WithUnit(ctx, func(u *engine.Unit) error {
		avCtx := propContext(t, producer, producer.name.ID, prodComponentID)
		_, err := u.SetValueForContext(ctx, avCtx, json.RawMessage(`"10.0.0.1"`))
		return err
	})
	if err != nil {
		t.Fatalf("Expected write to commit, got: %v", err)
	}
	if err := runner.Drain(ctx); err != nil {
		t.Fatalf("Expected drain to succeed, got: %v", err)
	}
	if queue.Len() != 0 {
		t.Errorf("Expected an empty queue after drain, got %d pending", queue.Len())
	}

	u := begin(t, eng)
	defer u.Rollback(ctx)

	// The provider value on the consumer side carries the producer's prop.
	providerValue := findValue(t, u, engine.AttributeReadContext{
		InternalProviderID: &intProvider.ID,
		ComponentID:        &consComponentID,
	})
	if got := resolve(t, u, providerValue.ID); got != `"10.0.0.1"` {
		t.Errorf("Expected consumer provider value \"10.0.0.1\", got %s", got)
	}

	// And so does the prop bound to the provider.
	nameID := consumer.name.ID
	nameValue := findValue(t, u, engine.AttributeReadContext{
		PropID:      &nameID,
		ComponentID: &consComponentID,
	})
	if got := resolve(t, u, nameValue.ID); got != `"10.0.0.1"` {
		t.Errorf("Expected consumer prop value \"10.0.0.1\", got %s", got)
	}
}

// TestPropagation_AggregationFanIn checks that duplicate argument names
// aggregate into a JSON array in binding order.
func TestPropagation_AggregationFanIn(t *testing.T) {
	eng, queue := newTestEngine(t)
	runner := jobs.NewRunner(eng, queue, zerolog.Nop())
	ctx := context.Background()

	var (
		f                *variantFixture
		membersProvider  *engine.InternalProvider
		frameComponentID engine.ComponentID
		childIDs         []engine.ComponentID
	)
	err := eng.WithUnit(ctx, func(u *engine.Unit) error {
		f = buildVariant(t, u, "cluster")
		if _, err := u.CreateFrameSocket(ctx, f.variant.ID, engine.SocketEdgeKindConfigurationInput); err != nil {
			return err
		}
		if _, err := u.CreateFrameSocket(ctx, f.variant.ID, engine.SocketEdgeKindConfigurationOutput); err != nil {
			return err
		}
		provider, _, err := u.NewExplicitInternalProviderWithSocket(ctx, f.variant.ID, "members", engine.SocketArityMany)
		if err != nil {
			return err
		}
		membersProvider = provider
		if _, _, err := u.NewExternalProviderWithSocket(ctx, f.variant.ID, "result", engine.NonePropID, engine.SocketArityMany); err != nil {
			return err
		}

		frameComponent, frameNode, err := u.CreateComponentWithNode(ctx, f.variant.ID, "cluster-1")
		if err != nil {
			return err
		}
		frameComponentID = frameComponent.ID
		if err := u.SetComponentType(ctx, frameComponent.ID, engine.ComponentTypeAggregationFrame); err != nil {
			return err
		}

		for _, name := range []string{"member-1", "member-2"} {
			component, node, err := u.CreateComponentWithNode(ctx, f.variant.ID, name)
			if err != nil {
				return err
			}
			childIDs = append(childIDs, component.ID)
			if _, err := u.AttachComponentToFrame(ctx, node.ID, frameNode.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected setup to commit, got: %v", err)
	}
	if err := runner.Drain(ctx); err != nil {
		t.Fatalf("Expected drain to succeed, got: %v", err)
	}

	// Give each member a distinct provider value.
	err = eng.WithUnit(ctx, func(u *engine.Unit) error {
		for i, componentID := range childIDs {
			componentID := componentID
			value := findValue(t, u, engine.AttributeReadContext{
				InternalProviderID: &membersProvider.ID,
				ComponentID:        &componentID,
			})
			raw, err := json.Marshal(i + 1)
			if err != nil {
				return err
			}
			if err := u.SetValue(ctx, value.ID, raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected writes to commit, got: %v", err)
	}
	if err := runner.Drain(ctx); err != nil {
		t.Fatalf("Expected drain to succeed, got: %v", err)
	}

	u := begin(t, eng)
	defer u.Rollback(ctx)
	frameValue := findValue(t, u, engine.AttributeReadContext{
		InternalProviderID: &membersProvider.ID,
		ComponentID:        &frameComponentID,
	})
	if got := resolve(t, u, frameValue.ID); got != `[1,2]` {
		t.Errorf("Expected fan-in array [1,2], got %s", got)
	}
}

// TestPropagation_RunnerCommitsQuietly checks that processing an update never
// enqueues another one, so draining terminates.
func TestPropagation_RunnerCommitsQuietly(t *testing.T) {
	eng, queue := newTestEngine(t)
	runner := jobs.NewRunner(eng, queue, zerolog.Nop())
	ctx := context.Background()

	var f *variantFixture
	var componentID engine.ComponentID
	err := eng.WithUnit(ctx, func(u *engine.Unit) error {
		f = buildVariant(t, u, "service")
		component, _, err := u.CreateComponentWithNode(ctx, f.variant.ID, "svc-1")
		if err != nil {
			return err
		}
		componentID = component.ID
		avCtx := propContext(t, f, f.name.ID, component.ID)
		_, err = u.SetValueForContext(ctx, avCtx, json.RawMessage(`"web"`))
		return err
	})
	if err != nil {
		t.Fatalf("Expected setup to commit, got: %v", err)
	}
	if queue.Len() == 0 {
		t.Fatal("Expected the commit to enqueue an update")
	}

	processed, err := runner.ProcessNext(ctx)
	if err != nil {
		t.Fatalf("Expected processing to succeed, got: %v", err)
	}
	if !processed {
		t.Fatal("Expected an update to be processed")
	}
	if queue.Len() != 0 {
		t.Errorf("Expected no follow-up updates, got %d pending", queue.Len())
	}

	u := begin(t, eng)
	defer u.Rollback(ctx)
	nameID := f.name.ID
	value := findValue(t, u, engine.AttributeReadContext{PropID: &nameID, ComponentID: &componentID})
	if got := resolve(t, u, value.ID); got != `"web"` {
		t.Errorf("Expected component value \"web\", got %s", got)
	}
}
