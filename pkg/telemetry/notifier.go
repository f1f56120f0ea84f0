package telemetry

import (
	"context"

	"github.com/propgraph/propgraph/pkg/engine"
)

// Notifier bridges engine change notifications into events and metrics. It
// implements engine.Notifier; all methods are fire-and-forget, matching the
// engine's contract that notifications never fail a mutation.
type Notifier struct {
	tel *Telemetry
}

// NewNotifier creates a notifier over the given telemetry instance.
func NewNotifier(tel *Telemetry) *Notifier {
	return &Notifier{tel: tel}
}

// ValueChanged records a value change event and metric.
func (n *Notifier) ValueChanged(ctx context.Context, id engine.AttributeValueID) {
	n.tel.Logger.WithValueID(id).Debug("attribute value changed")
	n.tel.Metrics.RecordValueChanged()
	_ = n.tel.Events.PublishValueChanged(string(id))
}

// ChangeSetWritten records a unit-of-work commit event and metric.
func (n *Notifier) ChangeSetWritten(ctx context.Context, unitID string, roots []engine.AttributeValueID) {
	n.tel.Logger.WithUnitID(unitID).Debug("change set written")
	n.tel.Metrics.RecordChangeSetCommitted(len(roots))
	_ = n.tel.Events.PublishChangeSetWritten(unitID, len(roots))
}

// FrameConnected records a frame attachment event and metric.
func (n *Notifier) FrameConnected(ctx context.Context, parent, child engine.ComponentID) {
	n.tel.Logger.WithComponentID(parent).WithField("child_component_id", string(child)).Debug("frame connected")
	n.tel.Metrics.RecordFrameConnection()
	_ = n.tel.Events.PublishFrameConnected(string(parent), string(child))
}
