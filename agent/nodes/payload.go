package nodes

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
)

// coerceAssistantTurn folds whatever the model produced into the canonical
// {output, actions} shape. Model output is untrusted input: a non-JSON reply
// becomes the output text, a JSON scalar is stringified, and the legacy
// singular {action, input} protocol is lifted into a one-element actions list.
func coerceAssistantTurn(reply, sessionID string, round int) contractx.AssistantTurn {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return contractx.AssistantTurn{Actions: []contractx.Action{}}
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		log.Warn().
			Str("session_id", sessionID).
			Int("round", round).
			Str("reply_preview", headString(trimmed, 200)).
			Msg("coercing non-json model reply")
		return contractx.AssistantTurn{Output: trimmed, Actions: []contractx.Action{}}
	}

	payload, ok := parsed.(map[string]any)
	if !ok {
		log.Warn().
			Str("session_id", sessionID).
			Int("round", round).
			Str("received_type", fmt.Sprintf("%T", parsed)).
			Msg("unexpected json type in model reply")
		if text, ok := parsed.(string); ok {
			return contractx.AssistantTurn{Output: text, Actions: []contractx.Action{}}
		}
		serialized, err := json.Marshal(parsed)
		if err != nil {
			serialized = []byte(fmt.Sprintf("%v", parsed))
		}
		return contractx.AssistantTurn{Output: string(serialized), Actions: []contractx.Action{}}
	}

	return contractx.AssistantTurn{
		Output:  normalizeOutput(payload["output"]),
		Actions: extractActions(payload),
	}
}

func extractActions(payload map[string]any) []contractx.Action {
	if raw, present := payload["actions"]; present {
		if rawActions, ok := raw.([]any); ok {
			actions := []contractx.Action{}
			for _, item := range rawActions {
				entry, ok := item.(map[string]any)
				if !ok {
					log.Warn().
						Err(fmt.Errorf("%w: action entry is %T, want object", contractx.ErrSchemaViolation, item)).
						Msg("skipping malformed action entry")
					continue
				}
				actions = append(actions, actionFromMap(entry, "tool"))
			}
			return actions
		}
		// A non-list actions field is ignored; the legacy singular
		// protocol below may still apply.
		log.Warn().
			Err(fmt.Errorf("%w: actions is %T, want list", contractx.ErrSchemaViolation, raw)).
			Msg("ignoring malformed actions field")
	}

	if action, ok := payload["action"].(string); ok && action != "" {
		input, _ := payload["input"].(map[string]any)
		callID, _ := payload["tool_call_id"].(string)
		return []contractx.Action{{Tool: action, Input: input, ToolCallID: callID}}
	}

	return []contractx.Action{}
}

func actionFromMap(entry map[string]any, toolKey string) contractx.Action {
	tool, _ := entry[toolKey].(string)
	input, _ := entry["input"].(map[string]any)
	callID, _ := entry["tool_call_id"].(string)
	return contractx.Action{Tool: tool, Input: input, ToolCallID: callID}
}

func normalizeOutput(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case map[string]any, []any:
		serialized, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(serialized)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func headString(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
