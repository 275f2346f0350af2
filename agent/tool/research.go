package tool

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
)

// ResearchTool bridges the concierge to the policy research agent, coercing
// the loosely typed tool arguments the model emits into a typed request.
type ResearchTool struct {
	researcher contractx.Researcher
}

func NewResearchTool(researcher contractx.Researcher) *ResearchTool {
	return &ResearchTool{researcher: researcher}
}

func (t *ResearchTool) Name() string { return NamePolicyResearch }

func (t *ResearchTool) Description() string {
	return "Agentic policy researcher that maps recommended products to eligible benefits."
}

func (t *ResearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_query": map[string]any{
				"type":        "string",
				"description": "Latest user request the agent should address",
			},
			"recommended_products": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Names of products the user is eligible for",
			},
			"tiers": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Corresponding tier labels for each product",
			},
			"chat_history": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"speaker": map[string]any{"type": "string"},
						"message": map[string]any{"type": "string"},
					},
					"required": []string{"speaker", "message"},
				},
				"description": "Optional recent conversation snippets to provide context",
			},
		},
		"required": []string{"user_query", "recommended_products", "tiers"},
	}
}

func (t *ResearchTool) Invoke(ctx context.Context, input map[string]any) (any, error) {
	req := contractx.ResearchRequest{
		UserQuery:           stringArg(input, "user_query"),
		RecommendedProducts: stringListArg(input, "recommended_products"),
		Tiers:               stringListArg(input, "tiers"),
		ChatHistory:         historyArg(input, "chat_history"),
	}

	var missing []string
	if _, ok := input["recommended_products"]; !ok {
		missing = append(missing, "recommended_products")
	}
	if _, ok := input["tiers"]; !ok {
		missing = append(missing, "tiers")
	}
	if len(missing) > 0 {
		log.Warn().
			Strs("missing", missing).
			Str("user_query_preview", preview(req.UserQuery, 80)).
			Msg("policy research called without expected arguments")
	}

	result, err := t.researcher.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("products", len(result.Products)).
		Bool("has_reasoning", result.Reasoning != "").
		Msg("policy research completed")

	return map[string]any{
		"products":  result.Products,
		"reasoning": result.Reasoning,
		"raw":       result.Raw,
	}, nil
}

// stringListArg accepts both a single string and a list of values.
func stringListArg(input map[string]any, key string) []string {
	raw, ok := input[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// historyArg tolerates the speaker/message and role/content key spellings.
func historyArg(input map[string]any, key string) []contractx.HistoryExchange {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	var history []contractx.HistoryExchange
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		speaker := stringArg(entry, "speaker")
		if speaker == "" {
			speaker = stringArg(entry, "role")
		}
		if speaker == "" {
			speaker = "unknown"
		}
		message := stringArg(entry, "message")
		if message == "" {
			message = stringArg(entry, "content")
		}
		history = append(history, contractx.HistoryExchange{Speaker: speaker, Message: message})
	}
	return history
}
