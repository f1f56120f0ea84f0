package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create policy engine: %v", err)
	}
	return e
}

func TestNewEngine_LoadsBuiltinPolicies(t *testing.T) {
	e := newTestEngine(t)

	policies := e.ListPolicies()
	if len(policies) != 3 {
		t.Errorf("Expected 3 built-in policies, got %d", len(policies))
	}

	for _, name := range []string{"connection-self-loop", "component-naming", "frame-nesting"} {
		p, err := e.GetPolicy(name)
		if err != nil {
			t.Errorf("Expected built-in policy %q, got error: %v", name, err)
			continue
		}
		if !p.Enabled {
			t.Errorf("Expected built-in policy %q to be enabled", name)
		}
	}
}

func TestEvaluateConnection_SelfLoopDenied(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.EvaluateConnection(context.Background(), &ConnectionInput{
		FromComponentID: "comp-1",
		FromComponent:   "api",
		FromSocket:      "endpoint",
		ToComponentID:   "comp-1",
		ToComponent:     "api",
		ToSocket:        "endpoint",
		EdgeKind:        "configuration",
	})
	if err != nil {
		t.Fatalf("Failed to evaluate connection: %v", err)
	}

	if result.Allowed {
		t.Error("Expected self-loop connection to be denied")
	}
	if len(result.Violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(result.Violations))
	}
	v := result.Violations[0]
	if v.Policy != "connection-self-loop" {
		t.Errorf("Expected violation from connection-self-loop, got %q", v.Policy)
	}
	if v.Severity != SeverityError {
		t.Errorf("Expected error severity, got %q", v.Severity)
	}
	if string(v.ComponentID) != "comp-1" {
		t.Errorf("Expected violation component comp-1, got %q", v.ComponentID)
	}
}

func TestEvaluateConnection_DistinctComponentsAllowed(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.EvaluateConnection(context.Background(), &ConnectionInput{
		FromComponentID: "comp-1",
		FromComponent:   "database",
		FromSocket:      "endpoint",
		ToComponentID:   "comp-2",
		ToComponent:     "api",
		ToSocket:        "endpoint",
		EdgeKind:        "configuration",
	})
	if err != nil {
		t.Fatalf("Failed to evaluate connection: %v", err)
	}

	if !result.Allowed {
		t.Errorf("Expected connection to be allowed, got violations: %+v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Expected no violations, got %d", len(result.Violations))
	}
}

func TestEvaluateComponent_NamingConventions(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name          string
		componentName string
		wantAllowed   bool
	}{
		{"valid lowercase name", "web-server", true},
		{"valid with digits", "cache-01", true},
		{"uppercase rejected", "WebServer", false},
		{"underscore rejected", "web_server", false},
		{"leading hyphen rejected", "-web", false},
		{"trailing hyphen rejected", "web-", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.EvaluateComponent(context.Background(), &ComponentInput{
				ID:     "comp-1",
				Name:   tt.componentName,
				Schema: "service",
				Type:   "component",
			})
			if err != nil {
				t.Fatalf("Failed to evaluate component: %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Expected allowed=%v for name %q, got %v (violations: %+v)",
					tt.wantAllowed, tt.componentName, result.Allowed, result.Violations)
			}
		})
	}
}

func TestEvaluateFrame_NestedAggregationWarns(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.EvaluateFrame(context.Background(), &FrameInput{
		ParentComponentID: "frame-1",
		ParentComponent:   "outer",
		ParentType:        "aggregationFrame",
		ChildComponentID:  "frame-2",
		ChildComponent:    "inner",
		ChildType:         "aggregationFrame",
	})
	if err != nil {
		t.Fatalf("Failed to evaluate frame: %v", err)
	}

	if !result.Allowed {
		t.Error("Expected warning-severity violation to leave the operation allowed")
	}
	if len(result.Violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(result.Violations))
	}
	if result.Violations[0].Severity != SeverityWarning {
		t.Errorf("Expected warning severity, got %q", result.Violations[0].Severity)
	}
}

func TestEvaluateFrame_ConfigurationFrameQuiet(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.EvaluateFrame(context.Background(), &FrameInput{
		ParentComponentID: "frame-1",
		ParentComponent:   "network",
		ParentType:        "configurationFrame",
		ChildComponentID:  "comp-1",
		ChildComponent:    "service",
		ChildType:         "component",
	})
	if err != nil {
		t.Fatalf("Failed to evaluate frame: %v", err)
	}

	if !result.Allowed || len(result.Violations) != 0 {
		t.Errorf("Expected clean result, got allowed=%v violations=%+v", result.Allowed, result.Violations)
	}
}

func TestDisablePolicy_SkipsEvaluation(t *testing.T) {
	e := newTestEngine(t)

	if err := e.DisablePolicy("connection-self-loop"); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	result, err := e.EvaluateConnection(context.Background(), &ConnectionInput{
		FromComponentID: "comp-1",
		ToComponentID:   "comp-1",
		EdgeKind:        "configuration",
	})
	if err != nil {
		t.Fatalf("Failed to evaluate connection: %v", err)
	}
	if !result.Allowed {
		t.Error("Expected disabled policy to be skipped")
	}

	if err := e.EnablePolicy("connection-self-loop"); err != nil {
		t.Fatalf("Failed to re-enable policy: %v", err)
	}

	result, err = e.EvaluateConnection(context.Background(), &ConnectionInput{
		FromComponentID: "comp-1",
		ToComponentID:   "comp-1",
		EdgeKind:        "configuration",
	})
	if err != nil {
		t.Fatalf("Failed to evaluate connection: %v", err)
	}
	if result.Allowed {
		t.Error("Expected re-enabled policy to deny the self-loop again")
	}
}

func TestEnablePolicy_UnknownPolicy(t *testing.T) {
	e := newTestEngine(t)

	if err := e.EnablePolicy("no-such-policy"); err == nil {
		t.Error("Expected error enabling unknown policy")
	}
	if err := e.DisablePolicy("no-such-policy"); err == nil {
		t.Error("Expected error disabling unknown policy")
	}
	if _, err := e.GetPolicy("no-such-policy"); err == nil {
		t.Error("Expected error getting unknown policy")
	}
}

func TestLoadPolicies_CustomRego(t *testing.T) {
	e := newTestEngine(t)

	dir := t.TempDir()
	rego := `# Blocks connections into the restricted schema.
package propgraph.policies.restricted

import rego.v1

deny contains violation if {
	input.connection
	input.connection.to_schema == "restricted"
	violation := {
		"message": "Connections into restricted schemas are forbidden",
		"severity": "error",
		"component": input.connection.to_component_id,
	}
}
`
	if err := os.WriteFile(filepath.Join(dir, "restricted.rego"), []byte(rego), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	if err := e.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}

	p, err := e.GetPolicy("restricted")
	if err != nil {
		t.Fatalf("Expected loaded policy, got error: %v", err)
	}
	if p.Description != "Blocks connections into the restricted schema." {
		t.Errorf("Expected description from leading comment, got %q", p.Description)
	}

	result, err := e.EvaluateConnection(context.Background(), &ConnectionInput{
		FromComponentID: "comp-1",
		ToComponentID:   "comp-2",
		ToSchema:        "restricted",
		EdgeKind:        "configuration",
	})
	if err != nil {
		t.Fatalf("Failed to evaluate connection: %v", err)
	}
	if result.Allowed {
		t.Error("Expected custom policy to deny the connection")
	}
}

func TestReloadPolicies_RestoresBuiltins(t *testing.T) {
	e := newTestEngine(t)

	dir := t.TempDir()
	rego := "package propgraph.policies.extra\n\nimport rego.v1\n\ndeny contains v if {\n\tfalse\n\tv := \"never\"\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "extra.rego"), []byte(rego), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}
	if err := e.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}
	if len(e.ListPolicies()) != 4 {
		t.Fatalf("Expected 4 policies after load, got %d", len(e.ListPolicies()))
	}

	if err := e.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}
	if len(e.ListPolicies()) != 3 {
		t.Errorf("Expected reload to restore the 3 built-in policies, got %d", len(e.ListPolicies()))
	}
	if _, err := e.GetPolicy("extra"); err == nil {
		t.Error("Expected loaded policy to be dropped by reload")
	}
}
