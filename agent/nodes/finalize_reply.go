package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
	statex "github.com/tanpawarit/aurora-concierge/agent/state"
	toolx "github.com/tanpawarit/aurora-concierge/agent/tool"
)

// FinalizeReply persists the assistant turn and assembles the TurnResult. A
// blank reply after successful tool runs is replaced with a deterministic
// summary of the last result so the caller never receives an empty answer.
func FinalizeReply(ctx context.Context, state *GraphState, store statex.Store) (contractx.TurnResult, error) {
	if state.Failure != nil {
		return *state.Failure, nil
	}

	output := strings.TrimSpace(state.Output)
	if output == "" && len(state.ToolRuns) > 0 {
		output = summarizeToolRun(state.ToolRuns[len(state.ToolRuns)-1])
	}

	record := map[string]any{"output": output, "actions": []any{}}
	if serialized, err := json.Marshal(record); err == nil {
		state.Session.AppendMessage("assistant", string(serialized))
		if err := store.Save(ctx, state.Session); err != nil {
			return contractx.TurnResult{}, err
		}
	}

	actions := state.Actions
	if actions == nil {
		actions = []contractx.Action{}
	}

	result := contractx.TurnResult{
		Output:   output,
		Actions:  actions,
		ToolRuns: state.ToolRuns,
	}
	if len(state.ToolRuns) > 0 {
		last := state.ToolRuns[len(state.ToolRuns)-1]
		result.ToolUsed = last.Name
		result.ToolResult = last.Result
	}
	return result, nil
}

func summarizeToolRun(run contractx.ToolRun) string {
	if run.Name == toolx.NamePolicyResearch {
		if summary := summarizeResearch(run.Result); summary != "" {
			return summary
		}
	}
	return fmt.Sprintf("Here is what I found from %s: %s", run.Name, compactValue(run.Result))
}

func compactValue(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

// summarizeResearch renders the research payload as readable prose with the
// fixed source attribution appended.
func summarizeResearch(result any) string {
	payload, ok := result.(map[string]any)
	if !ok {
		return ""
	}

	products, _ := payload["products"].([]map[string]any)
	if products == nil {
		if raw, ok := payload["products"].([]any); ok {
			for _, entry := range raw {
				if m, ok := entry.(map[string]any); ok {
					products = append(products, m)
				}
			}
		}
	}
	if len(products) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Here is what the policy research found:\n")
	for _, product := range products {
		name, _ := product["product"].(string)
		tier, _ := product["tier"].(string)
		if tier != "" {
			fmt.Fprintf(&b, "\n%s (%s)\n", name, tier)
		} else {
			fmt.Fprintf(&b, "\n%s\n", name)
		}
		if benefits, ok := product["benefits"].([]any); ok {
			for _, entry := range benefits {
				benefit, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				label, _ := benefit["name"].(string)
				fmt.Fprintf(&b, "- %s", label)
				if why, _ := benefit["why_eligible"].(string); why != "" {
					fmt.Fprintf(&b, ": %s", why)
				}
				b.WriteString("\n")
				if params, ok := benefit["parameters"].(map[string]any); ok && len(params) > 0 {
					fmt.Fprintf(&b, "  Parameters: %s\n", compactValue(params))
				}
				if conditions, ok := benefit["conditions"].([]any); ok {
					for _, condition := range conditions {
						fmt.Fprintf(&b, "  Condition: %v\n", condition)
					}
				}
			}
		}
		if rationale, _ := product["rationale"].(string); rationale != "" {
			fmt.Fprintf(&b, "Rationale: %s\n", rationale)
		}
	}
	if reasoning, _ := payload["reasoning"].(string); reasoning != "" {
		fmt.Fprintf(&b, "\n%s\n", reasoning)
	}
	b.WriteString("\nSource: policy taxonomy documentation.")
	return b.String()
}
