package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		connectionSelfLoopPolicy(),
		componentNamingPolicy(),
		frameNestingPolicy(),
	}
}

// connectionSelfLoopPolicy rejects connections that loop a component's output
// back into its own input.
func connectionSelfLoopPolicy() Policy {
	return Policy{
		Name:        "connection-self-loop",
		Description: "Rejects configuration connections from a component to itself",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"connections", "graph"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package propgraph.policies.connections

import rego.v1

deny contains violation if {
	input.connection
	c := input.connection
	c.edge_kind == "configuration"
	c.from_component_id == c.to_component_id
	violation := {
		"message": sprintf("Connection from socket '%s' loops back into component '%s'", [c.from_socket, c.from_component]),
		"severity": "error",
		"component": c.from_component_id,
	}
}
`,
	}
}

// componentNamingPolicy enforces component naming conventions.
func componentNamingPolicy() Policy {
	return Policy{
		Name:        "component-naming",
		Description: "Enforces component naming conventions (lowercase, alphanumeric, hyphens only)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package propgraph.policies.naming

import rego.v1

deny contains violation if {
	input.component
	component := input.component
	not component.name
	violation := {
		"message": sprintf("Component %s must have a name", [component.id]),
		"severity": "error",
		"component": component.id,
	}
}

deny contains violation if {
	input.component
	component := input.component
	name := component.name
	lower(name) != name
	violation := {
		"message": sprintf("Component name '%s' must be lowercase", [name]),
		"severity": "error",
		"component": component.id,
	}
}

deny contains violation if {
	input.component
	component := input.component
	name := component.name
	not regex.match("^[a-z0-9-]+$", name)
	violation := {
		"message": sprintf("Component name '%s' must contain only lowercase letters, numbers, and hyphens", [name]),
		"severity": "error",
		"component": component.id,
	}
}

deny contains violation if {
	input.component
	component := input.component
	name := component.name
	regex.match("^-|-$", name)
	violation := {
		"message": sprintf("Component name '%s' must not start or end with a hyphen", [name]),
		"severity": "error",
		"component": component.id,
	}
}
`,
	}
}

// frameNestingPolicy warns when aggregation frames are nested. The engine
// allows it, but the fan-in of the inner frame feeds the outer frame's fan-in
// which is rarely what a diagram author intends.
func frameNestingPolicy() Policy {
	return Policy{
		Name:        "frame-nesting",
		Description: "Warns when an aggregation frame is nested inside another aggregation frame",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"frames", "composition"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package propgraph.policies.frames

import rego.v1

deny contains violation if {
	input.frame
	f := input.frame
	f.parent_type == "aggregationFrame"
	f.child_type == "aggregationFrame"
	violation := {
		"message": sprintf("Aggregation frame '%s' is nested inside aggregation frame '%s'", [f.child_component, f.parent_component]),
		"severity": "warning",
		"component": f.child_component_id,
	}
}
`,
	}
}
