// Package nodes contains the orchestrator graph steps: request validation,
// session loading, prompt assembly, the bounded tool loop, and reply
// finalization.
package nodes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
	statex "github.com/tanpawarit/aurora-concierge/agent/state"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrInvalidMessage = errors.New("user message is empty")
)

// GraphInput is one inbound user message.
type GraphInput struct {
	SessionID   string
	UserMessage string
	Channel     string
}

// GraphState is threaded through the orchestrator graph nodes.
type GraphState struct {
	In  GraphInput
	Now time.Time

	Session  *statex.Session
	Messages []*schema.Message

	ToolRuns []contractx.ToolRun
	Output   string
	Actions  []contractx.Action

	// Failure short-circuits finalization for turn-terminating model errors.
	Failure *contractx.TurnResult
}

func ValidateRequest(in GraphInput, now func() time.Time) (*GraphState, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, ErrInvalidSession)
	}
	if strings.TrimSpace(in.UserMessage) == "" {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, ErrInvalidMessage)
	}
	if strings.TrimSpace(in.Channel) == "" {
		in.Channel = "chat"
	}
	return &GraphState{In: in, Now: now()}, nil
}
