package state

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tanpawarit/aurora-concierge/agent/profile"
)

// Message is a single transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the persisted conversation state: transcript, the reconciled
// traveller roster, and the latest result per tool.
type Session struct {
	SessionID   string                     `json:"session_id"`
	Version     int                        `json:"version"`
	Messages    []Message                  `json:"messages"`
	Clients     []profile.ClientDatum      `json:"clients"`
	ToolResults map[string]json.RawMessage `json:"tool_results,omitempty"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

func NewSession(sessionID string) *Session {
	return &Session{
		SessionID: sessionID,
		Version:   1,
		Messages:  []Message{},
		Clients:   []profile.ClientDatum{},
	}
}

// EnsureDefaults normalizes nil collections after a round-trip through JSON.
func (s *Session) EnsureDefaults() {
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.Clients == nil {
		s.Clients = []profile.ClientDatum{}
	}
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	return nil
}

func (s *Session) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// SetToolResult stores the most recent result for a tool, overwriting any
// previous run.
func (s *Session) SetToolResult(toolName string, result json.RawMessage) {
	if s.ToolResults == nil {
		s.ToolResults = map[string]json.RawMessage{}
	}
	s.ToolResults[toolName] = result
}

func (s *Session) ToolResult(toolName string) (json.RawMessage, bool) {
	raw, ok := s.ToolResults[toolName]
	return raw, ok
}

var confirmationPhrases = []string{
	"confirm",
	"confirmed",
	"looks good",
	"correct",
	"go ahead",
	"approve",
	"proceed",
	"verified",
}

var acceptedFirstTokens = map[string]struct{}{
	"yes": {}, "yup": {}, "yeah": {}, "sure": {}, "ok": {}, "okay": {},
}

// MarkVerificationConfirmed promotes any pending verification to confirmed
// when the user message reads as an affirmation. Questions never confirm.
// Returns whether anything changed.
func (s *Session) MarkVerificationConfirmed(userMessage string, now time.Time) bool {
	text := strings.ToLower(strings.TrimSpace(userMessage))
	if text == "" || strings.Contains(text, "?") {
		return false
	}

	isConfirmation := false
	for _, phrase := range confirmationPhrases {
		if strings.Contains(text, phrase) {
			isConfirmation = true
			break
		}
	}
	if !isConfirmation {
		if tokens := strings.Fields(text); len(tokens) > 0 {
			_, isConfirmation = acceptedFirstTokens[tokens[0]]
		}
	}
	if !isConfirmation {
		return false
	}

	updated := false
	stamp := now.UTC().Format(time.RFC3339)
	for i := range s.Clients {
		verification := &s.Clients[i].Verification
		if verification.Status == profile.VerificationPending {
			verification.Status = profile.VerificationConfirmed
			verification.ConfirmedAt = stamp
			if verification.Fields == nil {
				verification.Fields = map[string]any{}
			}
			updated = true
		}
	}
	return updated
}

// RequestVerification puts the matching client (all clients when clientID is
// empty) into the pending state with the given field snapshot. A stale
// confirmed_at from a previous round is cleared.
func (s *Session) RequestVerification(clientID string, fields map[string]any, now time.Time) bool {
	updated := false
	stamp := now.UTC().Format(time.RFC3339)
	for i := range s.Clients {
		if !matchesClient(s.Clients[i], clientID) {
			continue
		}
		verification := &s.Clients[i].Verification
		verification.Status = profile.VerificationPending
		verification.Fields = fields
		verification.RequestedAt = stamp
		verification.ConfirmedAt = ""
		updated = true
	}
	return updated
}

func matchesClient(client profile.ClientDatum, clientID string) bool {
	if clientID == "" {
		return true
	}
	if client.ClientID == clientID {
		return true
	}
	return client.PersonalInfo.PassportNumber == clientID
}
