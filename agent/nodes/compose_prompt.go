package nodes

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/aurora-concierge/agent/guidance"
	toolx "github.com/tanpawarit/aurora-concierge/agent/tool"
)

const toolInstruction = "You have access to specialized tools.\n" +
	"Respond using a JSON object shaped as:\n" +
	`{"output": "<assistant reply or empty string>", "actions": [{"tool": "tool_name", "input": { ... }}]}` + "\n" +
	"List every required tool in execution order inside the actions array.\n" +
	"When you need to call tools, set `output` to an empty string and populate `actions`.\n" +
	"After tool results are available, produce the final answer by setting `output` and an empty `actions` array.\n" +
	"Always cite policy sources in `output` when giving direct answers."

// ComposePrompt builds the running message list: system prompt (persona, tool
// catalog, profile guidance, cached risk summary), prior transcript, and the
// latest user message.
func ComposePrompt(state *GraphState, persona string, tools *toolx.Registry) (*GraphState, error) {
	system := persona + "\n\n" +
		"Channel: " + state.In.Channel + ".\n" +
		"Available Tools:\n" + tools.Catalog() + "\n\n" +
		toolInstruction

	if block, err := guidance.Compose(state.Session.Clients); err != nil {
		log.Warn().Err(err).Msg("profile guidance unavailable for this turn")
	} else if block != nil {
		system += "\n\n" + block.Summary
	}

	if cached, ok := state.Session.ToolResult(toolx.NameClaimsRecommendation); ok {
		system += "\n\n[Risk Forecast]\n" + compactJSON(cached)
	}

	messages := []*schema.Message{schema.SystemMessage(system)}
	// Transcript already contains this turn's user message; replay it as-is.
	for _, msg := range state.Session.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(msg.Content))
		}
	}

	state.Messages = messages
	return state, nil
}

func compactJSON(raw json.RawMessage) string {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		return string(raw)
	}
	return string(encoded)
}
