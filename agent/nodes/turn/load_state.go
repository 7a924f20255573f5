package turnnode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

// LoadState hydrates the working state for this turn: cache first, then a
// full rebuild from the interaction log. The rebuild excludes the turn just
// logged, so the current message is appended exactly once either way.
func LoadState(
	ctx context.Context,
	in *GraphState,
	cache statex.Cache,
	rebuilder *statex.Reconstructor,
	journal TurnJournal,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if cache != nil {
		cached, err := cache.Get(ctx, in.SessionID)
		switch {
		case err == nil && cached.Validate() == nil:
			in.State = cached
			in.CacheHit = true
		case err != nil && !errors.Is(err, statex.ErrStateNotFound):
			log.Warn().Err(err).Str("session_id", in.SessionID).Msg("state cache read failed")
		}
	}

	if in.State == nil {
		history, err := journal.HistoryBefore(ctx, in.SessionID, in.UserTurnID)
		if err != nil {
			return nil, fmt.Errorf("%w: read history: %v", statex.ErrStoreUnavailable, err)
		}
		rebuilt, err := rebuilder.Rebuild(ctx, in.SessionID, history, in.Now)
		if err != nil {
			return nil, err
		}
		in.State = rebuilt
	}

	in.State.AppendUser(in.Text)
	return in, nil
}
