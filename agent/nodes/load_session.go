package nodes

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	statex "github.com/tanpawarit/aurora-concierge/agent/state"
)

// LoadSession fetches (or creates) the session, persists the user's message,
// and promotes any pending verification the message confirms. The transcript
// write happens before the model runs so a crash mid-turn still leaves the
// user message on record.
func LoadSession(ctx context.Context, state *GraphState, store statex.Store) (*GraphState, error) {
	sess, err := store.Load(ctx, state.In.SessionID)
	if err != nil {
		if !errors.Is(err, statex.ErrSessionNotFound) {
			return nil, err
		}
		sess = statex.NewSession(state.In.SessionID)
	}

	sess.AppendMessage("user", state.In.UserMessage)
	if sess.MarkVerificationConfirmed(state.In.UserMessage, state.Now) {
		log.Info().Str("session_id", state.In.SessionID).Msg("traveller confirmed verification")
	}
	if err := store.Save(ctx, sess); err != nil {
		return nil, err
	}

	state.Session = sess
	return state, nil
}
