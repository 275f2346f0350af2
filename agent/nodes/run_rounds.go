package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
	"github.com/tanpawarit/aurora-concierge/agent/profile"
	statex "github.com/tanpawarit/aurora-concierge/agent/state"
	toolx "github.com/tanpawarit/aurora-concierge/agent/tool"
)

const (
	unknownToolReply = "I'm sorry, I can't access the requested capability right now. " +
		"Could you try rephrasing your question?"
	roundLimitReply = "I'm sorry, I'm having trouble completing that request right now. " +
		"Let's try again in a moment."
)

// RunRounds drives the bounded LLM/tool loop. Each round either terminates
// with a textual answer or queues tool calls whose results feed the next
// round. Exhausting the round budget is a terminal apology, not an error.
func RunRounds(
	ctx context.Context,
	state *GraphState,
	chatModel einomodel.BaseChatModel,
	tools *toolx.Registry,
	store statex.Store,
	maxRounds int,
) (*GraphState, error) {
	sessionID := state.In.SessionID

	for round := 1; round <= maxRounds; round++ {
		response, err := chatModel.Generate(ctx, state.Messages)
		if err != nil {
			log.Error().
				Err(fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)).
				Str("session_id", sessionID).
				Int("round", round).
				Msg("model invocation failed")
			state.Failure = &contractx.TurnResult{
				Actions:  []contractx.Action{},
				ToolRuns: state.ToolRuns,
				Error:    "llm_failure",
				Message:  err.Error(),
			}
			return state, nil
		}

		turn := coerceAssistantTurn(response.Content, sessionID, round)
		if len(turn.Actions) == 0 {
			state.Output = turn.Output
			return state, nil
		}

		serialized, err := json.Marshal(turn)
		if err != nil {
			return nil, err
		}
		state.Messages = append(state.Messages, schema.AssistantMessage(string(serialized), nil))

		for index, action := range turn.Actions {
			toolName := strings.TrimSpace(action.Tool)
			if toolName == "" {
				log.Warn().Str("session_id", sessionID).Interface("action", action).Msg("tool call without a name skipped")
				continue
			}

			impl, ok := tools.Get(toolName)
			if !ok {
				log.Error().
					Err(fmt.Errorf("%w: %q", contractx.ErrUnknownTool, toolName)).
					Str("session_id", sessionID).
					Msg("turn terminated on unknown tool")
				state.Output = unknownToolReply
				return state, nil
			}

			log.Info().
				Str("session_id", sessionID).
				Str("tool", toolName).
				Int("sequence", index+1).
				Int("total", len(turn.Actions)).
				Msg("executing tool call")

			if toolName == toolx.NamePaymentCheckout {
				blocked, reply, err := runPaymentGuard(ctx, state, store, action.Input)
				if err != nil {
					return nil, err
				}
				if blocked {
					state.Output = reply
					return state, nil
				}
			}

			result, err := impl.Invoke(ctx, action.Input)
			if err != nil {
				log.Error().Err(err).Str("session_id", sessionID).Str("tool", toolName).Msg("tool invocation failed")
				result = map[string]any{"status": "error", "message": err.Error()}
			}

			resultJSON, err := json.Marshal(result)
			if err != nil {
				log.Error().Err(err).Str("tool", toolName).Msg("tool result not serializable")
				resultJSON = []byte(`{"status":"error","message":"tool result not serializable"}`)
				result = map[string]any{"status": "error", "message": "tool result not serializable"}
			}

			callID := action.ToolCallID
			if callID == "" {
				callID = "toolcall-" + strings.ReplaceAll(uuid.NewString(), "-", "")
			}

			state.Messages = append(state.Messages, schema.ToolMessage(string(resultJSON), callID, schema.WithToolName(toolName)))
			state.Session.SetToolResult(toolName, resultJSON)
			if err := store.Save(ctx, state.Session); err != nil {
				return nil, err
			}

			state.ToolRuns = append(state.ToolRuns, contractx.ToolRun{
				Name:       toolName,
				Input:      action.Input,
				Result:     result,
				ToolCallID: callID,
			})
		}
	}

	log.Error().Str("session_id", sessionID).Int("max_rounds", maxRounds).Msg("round budget exhausted")
	state.Output = roundLimitReply
	return state, nil
}

// runPaymentGuard enriches the roster from the checkout payload, then blocks
// the tool call unless every traveller is complete and confirmed.
func runPaymentGuard(ctx context.Context, state *GraphState, store statex.Store, input map[string]any) (bool, string, error) {
	if merged, updated := profile.ApplyPaymentContext(state.Session.Clients, input); updated {
		state.Session.Clients = merged
		if err := store.Save(ctx, state.Session); err != nil {
			return false, "", err
		}
	}

	readiness := profile.EvaluateReadiness(state.Session.Clients)
	if readiness.Status == profile.ReadinessReady {
		return false, "", nil
	}

	log.Info().
		Str("session_id", state.In.SessionID).
		Str("status", string(readiness.Status)).
		Msg("payment checkout blocked by readiness gate")

	if readiness.Status == profile.ReadinessUnverified {
		if state.Session.RequestVerification(readiness.ClientID, readiness.Fields, state.Now) {
			if err := store.Save(ctx, state.Session); err != nil {
				return false, "", err
			}
		}
	}

	return true, composePaymentGuardReply(readiness), nil
}
