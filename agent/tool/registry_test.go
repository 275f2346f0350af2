package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
)

type stubTool struct {
	name        string
	description string
	schema      map[string]any
	result      any
	err         error
	calls       int
	lastInput   map[string]any
}

func (s *stubTool) Name() string           { return s.name }
func (s *stubTool) Description() string    { return s.description }
func (s *stubTool) Schema() map[string]any { return s.schema }

func (s *stubTool) Invoke(ctx context.Context, input map[string]any) (any, error) {
	s.calls++
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestNewRegistryRejectsEmptyName(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(&stubTool{name: "  "})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNewRegistryRejectsUnknownName(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(&stubTool{name: "weather_lookup"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(
		&stubTool{name: "claims_recommendation"},
		&stubTool{name: "claims_recommendation"},
	)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegistryGetAndNames(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(
		&stubTool{name: "policy_research"},
		&stubTool{name: "claims_recommendation"},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if _, ok := registry.Get("policy_research"); !ok {
		t.Fatal("registered tool missing")
	}
	if _, ok := registry.Get("unknown"); ok {
		t.Fatal("unknown tool should not resolve")
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "claims_recommendation" || names[1] != "policy_research" {
		t.Fatalf("Names() = %v, want sorted", names)
	}
}

func TestRegistryCatalog(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(
		&stubTool{
			name:        "policy_research",
			description: "Research policy benefits.",
			schema:      map[string]any{"type": "object"},
		},
		&stubTool{
			name:        "payment_status",
			description: "Check a checkout session.",
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	catalog := registry.Catalog()
	lines := strings.Split(catalog, "\n")
	if len(lines) != 2 {
		t.Fatalf("catalog lines = %d: %q", len(lines), catalog)
	}
	if lines[0] != `- policy_research: Research policy benefits. | Schema: {"type":"object"}` {
		t.Fatalf("line[0] = %q", lines[0])
	}
	if lines[1] != "- payment_status: Check a checkout session." {
		t.Fatalf("line[1] = %q", lines[1])
	}
}
