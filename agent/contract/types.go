package contract

type AgentType string

const (
	AgentTypeConcierge  AgentType = "concierge"
	AgentTypeResearcher AgentType = "researcher"
)

// Action is one tool invocation the model requested inside an assistant turn.
type Action struct {
	Tool       string         `json:"tool"`
	Input      map[string]any `json:"input,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// AssistantTurn is the canonical shape of one model reply:
// {"output": "...", "actions": [{"tool": ..., "input": {...}}]}.
// Anything else the model emits is coerced into this shape.
type AssistantTurn struct {
	Output  string   `json:"output"`
	Actions []Action `json:"actions"`
}

// ToolRun records one executed tool call within a turn.
type ToolRun struct {
	Name       string         `json:"name"`
	Input      map[string]any `json:"input,omitempty"`
	Result     any            `json:"result,omitempty"`
	ToolCallID string         `json:"tool_call_id"`
}

// TurnResult is what one full user turn produces across all rounds.
// Error/Message are set only for turn-terminating transport failures.
type TurnResult struct {
	Output     string    `json:"output"`
	Actions    []Action  `json:"actions"`
	ToolUsed   string    `json:"tool_used,omitempty"`
	ToolResult any       `json:"tool_result,omitempty"`
	ToolRuns   []ToolRun `json:"tool_runs"`
	Error      string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// ResearchRequest is the input to the policy research sub-agent.
type ResearchRequest struct {
	UserQuery           string            `json:"user_query"`
	RecommendedProducts []string          `json:"recommended_products"`
	Tiers               []string          `json:"tiers"`
	ChatHistory         []HistoryExchange `json:"chat_history,omitempty"`
}

type HistoryExchange struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

// ResearchResult is the outcome of one policy research run. Raw keeps the
// unparsed model output so callers can render or audit it.
type ResearchResult struct {
	Products  []map[string]any `json:"products"`
	Reasoning string           `json:"reasoning,omitempty"`
	Raw       string           `json:"raw,omitempty"`
}
