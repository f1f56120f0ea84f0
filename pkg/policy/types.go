package policy

import (
	"time"

	"github.com/propgraph/propgraph/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// ComponentID is the component the violation concerns, when known.
	ComponentID engine.ComponentID `json:"component_id,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the outcome of a policy evaluation.
type Result struct {
	// Allowed indicates if the operation is allowed.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies whose evaluation itself failed.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// ConnectionInput describes a proposed connection for policy evaluation.
type ConnectionInput struct {
	FromComponentID engine.ComponentID `json:"from_component_id"`
	FromComponent   string             `json:"from_component"`
	FromSchema      string             `json:"from_schema"`
	FromSocket      string             `json:"from_socket"`
	ToComponentID   engine.ComponentID `json:"to_component_id"`
	ToComponent     string             `json:"to_component"`
	ToSchema        string             `json:"to_schema"`
	ToSocket        string             `json:"to_socket"`
	EdgeKind        engine.EdgeKind    `json:"edge_kind"`
}

// FrameInput describes a proposed frame attachment for policy evaluation.
type FrameInput struct {
	ParentComponentID engine.ComponentID   `json:"parent_component_id"`
	ParentComponent   string               `json:"parent_component"`
	ParentType        engine.ComponentType `json:"parent_type"`
	ChildComponentID  engine.ComponentID   `json:"child_component_id"`
	ChildComponent    string               `json:"child_component"`
	ChildType         engine.ComponentType `json:"child_type"`
}

// ComponentInput describes a component for policy evaluation.
type ComponentInput struct {
	ID     engine.ComponentID   `json:"id"`
	Name   string               `json:"name"`
	Schema string               `json:"schema"`
	Type   engine.ComponentType `json:"type"`
}

// Input is the document handed to Rego as "input". Exactly one of the
// operation fields is set per evaluation.
type Input struct {
	Connection *ConnectionInput `json:"connection,omitempty"`
	Frame      *FrameInput      `json:"frame,omitempty"`
	Component  *ComponentInput  `json:"component,omitempty"`
	Context    *EvalContext     `json:"context"`
}

// EvalContext provides additional evaluation context.
type EvalContext struct {
	// Timestamp is when the evaluation was requested.
	Timestamp time.Time `json:"timestamp"`

	// Operation names what is being gated: connect, frame, component.
	Operation string `json:"operation"`
}

// Bundle is a named collection of policies loaded together.
type Bundle struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Policies []Policy `json:"policies"`
}
