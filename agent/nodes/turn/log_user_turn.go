package turnnode

import (
	"context"
	"fmt"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

// EnsureSession creates the session row on first contact. Idempotent for
// existing sessions.
func EnsureSession(ctx context.Context, in *GraphState, sessions SessionBook) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if err := sessions.Ensure(ctx, in.SessionID, in.Now); err != nil {
		return nil, fmt.Errorf("%w: ensure session: %v", statex.ErrStoreUnavailable, err)
	}
	return in, nil
}

// LogUserTurn appends the incoming message to the interaction log before any
// processing. The log is the source of truth; a turn that cannot be recorded
// is not processed.
func LogUserTurn(ctx context.Context, in *GraphState, journal TurnJournal) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	id, err := journal.Append(ctx, in.SessionID, statex.Message{
		Role:    statex.RoleUser,
		Content: in.Text,
	}, in.Now)
	if err != nil {
		return nil, fmt.Errorf("%w: log user turn: %v", statex.ErrStoreUnavailable, err)
	}

	in.UserTurnID = id
	return in, nil
}
