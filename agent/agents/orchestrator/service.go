// Package orchestrator drives the concierge conversation: it loads session
// state, assembles the system prompt, runs the bounded LLM/tool loop, and
// persists every turn.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/aurora-concierge/agent/contract"
	nodex "github.com/tanpawarit/aurora-concierge/agent/nodes"
	"github.com/tanpawarit/aurora-concierge/agent/profile"
	promptx "github.com/tanpawarit/aurora-concierge/agent/prompt"
	statex "github.com/tanpawarit/aurora-concierge/agent/state"
	toolx "github.com/tanpawarit/aurora-concierge/agent/tool"
)

const defaultMaxRounds = 6

var defaultPersona = promptx.LoadPromptSet().Concierge

type Config struct {
	Persona   string
	MaxRounds int
}

type Orchestrator struct {
	store statex.Store
	model einomodel.BaseChatModel
	tools *toolx.Registry

	persona   string
	maxRounds int

	graphRunner compose.Runnable[nodex.GraphInput, contractx.TurnResult]

	now func() time.Time
}

func New(
	store statex.Store,
	chatModel einomodel.BaseChatModel,
	tools *toolx.Registry,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if tools == nil {
		return nil, errors.New("tool registry is required")
	}

	persona := strings.TrimSpace(cfg.Persona)
	if persona == "" {
		persona = defaultPersona
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	o := &Orchestrator{
		store:     store,
		model:     chatModel,
		tools:     tools,
		persona:   persona,
		maxRounds: maxRounds,
		now:       time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one full conversation turn.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, userMessage, channel string) (contractx.TurnResult, error) {
	return o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID:   sessionID,
		UserMessage: userMessage,
		Channel:     channel,
	})
}

// MergeClients folds externally sourced profiles (webhooks, partner
// integrations) into the session roster. A blank client source inherits the
// supplied one.
func (o *Orchestrator) MergeClients(ctx context.Context, sessionID string, clients []profile.ClientDatum, source string) ([]profile.ClientDatum, error) {
	sess, err := o.loadOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return sess.Clients, nil
	}

	normalized := make([]profile.ClientDatum, len(clients))
	copy(normalized, clients)
	if source != "" {
		for i := range normalized {
			if normalized[i].Source == "" {
				normalized[i].Source = source
			}
		}
	}

	sess.Clients = profile.MergeClientRecords(sess.Clients, normalized, o.now())
	if err := o.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess.Clients, nil
}

// ClearSession drops all stored state for a session id.
func (o *Orchestrator) ClearSession(ctx context.Context, sessionID string) error {
	return o.store.Delete(ctx, sessionID)
}

func (o *Orchestrator) loadOrCreateSession(ctx context.Context, sessionID string) (*statex.Session, error) {
	sess, err := o.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, statex.ErrSessionNotFound) {
			return statex.NewSession(sessionID), nil
		}
		return nil, err
	}
	return sess, nil
}
