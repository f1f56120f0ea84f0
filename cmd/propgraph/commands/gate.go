package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/propgraph/propgraph/pkg/policy"
)

// newPolicyGate builds the policy engine with builtins loaded.
func newPolicyGate() (*policy.Engine, error) {
	gate, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	return gate, nil
}

// enforce prints violations and fails the command when the result denies the
// operation. Warnings are printed but do not fail.
func enforce(result *policy.Result) error {
	for _, v := range result.Violations {
		if v.Severity == policy.SeverityError || v.Severity == policy.SeverityCritical {
			fmt.Printf("✗ [%s] %s: %s\n", v.Severity, v.Policy, v.Message)
		} else {
			fmt.Printf("! [%s] %s: %s\n", v.Severity, v.Policy, v.Message)
		}
	}
	for _, w := range result.Warnings {
		fmt.Printf("! %s\n", w)
	}
	if !result.Allowed {
		return fmt.Errorf("operation denied by policy")
	}
	return nil
}
