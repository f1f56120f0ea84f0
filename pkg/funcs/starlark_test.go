package funcs

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStarlarkFunc_ComputesFromArgs(t *testing.T) {
	fn := StarlarkFunc(`value = args["host"] + ":" + args["port"]`, 0)

	got, err := fn(context.Background(), nil, map[string]json.RawMessage{
		"host": json.RawMessage(`"db.internal"`),
		"port": json.RawMessage(`"5432"`),
	})
	if err != nil {
		t.Fatalf("Expected evaluation to succeed, got: %v", err)
	}
	if string(got) != `"db.internal:5432"` {
		t.Errorf("Expected \"db.internal:5432\", got %s", got)
	}
}

func TestStarlarkFunc_SeesStaticArgs(t *testing.T) {
	fn := StarlarkFunc(`value = static["prefix"] + args["value"]`, 0)

	got, err := fn(context.Background(),
		json.RawMessage(`{"prefix":"svc-"}`),
		map[string]json.RawMessage{"value": json.RawMessage(`"web"`)})
	if err != nil {
		t.Fatalf("Expected evaluation to succeed, got: %v", err)
	}
	if string(got) != `"svc-web"` {
		t.Errorf("Expected \"svc-web\", got %s", got)
	}
}

func TestStarlarkFunc_StructuredResult(t *testing.T) {
	fn := StarlarkFunc(`value = {"members": args["value"], "count": len(args["value"])}`, 0)

	got, err := fn(context.Background(), nil, map[string]json.RawMessage{
		"value": json.RawMessage(`[1,2,3]`),
	})
	if err != nil {
		t.Fatalf("Expected evaluation to succeed, got: %v", err)
	}

	var decoded struct {
		Members []int `json:"members"`
		Count   int   `json:"count"`
	}
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("Expected a JSON object, got %s: %v", got, err)
	}
	if decoded.Count != 3 || len(decoded.Members) != 3 {
		t.Errorf("Expected 3 members, got %+v", decoded)
	}
}

func TestStarlarkFunc_MissingValueGlobal(t *testing.T) {
	fn := StarlarkFunc(`result = 1`, 0)

	_, err := fn(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("Expected an error when the script assigns no value global, got nil")
	}
	if !strings.Contains(err.Error(), "value") {
		t.Errorf("Expected the error to name the missing global, got: %v", err)
	}
}

func TestStarlarkFunc_SyntaxError(t *testing.T) {
	fn := StarlarkFunc(`value = `, 0)

	_, err := fn(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("Expected a syntax error, got nil")
	}
}

func TestStarlarkFunc_TopLevelControlFlow(t *testing.T) {
	script := `
total = 0
for n in args["values"]:
    if n % 2 == 0:
        total += n
value = total
`
	fn := StarlarkFunc(script, 0)

	got, err := fn(context.Background(), nil, map[string]json.RawMessage{
		"values": json.RawMessage(`[1,2,3,4]`),
	})
	if err != nil {
		t.Fatalf("Expected top-level control flow to evaluate, got: %v", err)
	}
	if string(got) != "6" {
		t.Errorf("Expected 6, got %s", got)
	}
}

func TestStarlarkFunc_Timeout(t *testing.T) {
	script := `
total = 0
for i in range(100000000):
    total += i
value = total
`
	fn := StarlarkFunc(script, 10*time.Millisecond)

	_, err := fn(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("Expected a timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("Expected a timeout error, got: %v", err)
	}
}
