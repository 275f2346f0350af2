// Package tool hosts the capabilities the concierge can invoke during a
// conversation turn: claims analytics, document ingestion, policy research,
// payment checkout, and policy issuance.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
)

const (
	NameClaimsRecommendation = "claims_recommendation"
	NameDocumentIngest       = "document_ingest"
	NamePolicyResearch       = "policy_research"
	NamePaymentCheckout      = "payment_checkout"
	NamePaymentStatus        = "payment_status"
	NamePolicyPurchase       = "travel_insurance_purchase"
)

// builtinNames is the closed action vocabulary. Registration of any other
// name fails at startup.
var builtinNames = map[string]struct{}{
	NameClaimsRecommendation: {},
	NameDocumentIngest:       {},
	NamePolicyResearch:       {},
	NamePaymentCheckout:      {},
	NamePaymentStatus:        {},
	NamePolicyPurchase:       {},
}

// Tool is a single invokable capability. Schema is a JSON-schema fragment
// surfaced verbatim in the system prompt catalog.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Invoke(ctx context.Context, input map[string]any) (any, error)
}

// Registry indexes tools by name and renders the prompt catalog.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	registry := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		name := strings.TrimSpace(t.Name())
		if name == "" {
			return nil, fmt.Errorf("%w: tool with empty name", contractx.ErrValidation)
		}
		if _, known := builtinNames[name]; !known {
			return nil, fmt.Errorf("%w: tool %q is not part of the action vocabulary", contractx.ErrValidation, name)
		}
		if _, exists := registry.tools[name]; exists {
			return nil, fmt.Errorf("%w: duplicate tool %q", contractx.ErrValidation, name)
		}
		registry.tools[name] = t
		registry.order = append(registry.order, name)
	}
	return registry, nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Catalog renders one line per tool for the system prompt, in registration
// order.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for i, name := range r.order {
		if i > 0 {
			b.WriteString("\n")
		}
		t := r.tools[name]
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(t.Description())
		if schema := t.Schema(); len(schema) > 0 {
			encoded, err := json.Marshal(schema)
			if err == nil {
				b.WriteString(" | Schema: ")
				b.Write(encoded)
			}
		}
	}
	return b.String()
}
