package turnnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

// PersistReply makes the turn durable: the patient linkage first, then the
// assistant message. Both are required for a faithful rebuild, so either
// failure aborts the turn.
func PersistReply(ctx context.Context, in *GraphState, journal TurnJournal, sessions SessionBook) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.AttachedPatient != nil {
		attached, err := sessions.AttachPatient(ctx, in.SessionID, in.AttachedPatient.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: attach patient: %v", statex.ErrStoreUnavailable, err)
		}
		if !attached {
			// Another turn linked this session first; the stored linkage wins.
			log.Info().Str("session_id", in.SessionID).Int64("patient_id", in.AttachedPatient.ID).
				Msg("session already linked to a patient")
		}
	}

	if _, err := journal.Append(ctx, in.SessionID, statex.Message{
		Role:    statex.RoleAssistant,
		Agent:   in.RespondedBy,
		Content: in.Response.Message,
	}, in.Now); err != nil {
		return nil, fmt.Errorf("%w: log assistant turn: %v", statex.ErrStoreUnavailable, err)
	}

	return in, nil
}

// SaveCache refreshes the best-effort state cache. The log already holds the
// turn, so cache failures are logged and ignored.
func SaveCache(ctx context.Context, in *GraphState, cache statex.Cache) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if cache == nil {
		return in, nil
	}
	if err := cache.Put(ctx, in.State); err != nil {
		log.Warn().Err(err).Str("session_id", in.SessionID).Msg("state cache write failed")
	}
	return in, nil
}
