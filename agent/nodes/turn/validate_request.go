// Package turnnode holds the per-turn pipeline steps the orchestrator wires
// into its graph. Each node takes the shared GraphState, does one thing, and
// passes it on.
package turnnode

import (
	"context"
	"errors"
	"strings"
	"time"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

// TurnJournal is the append-only interaction log a session is rebuilt from.
type TurnJournal interface {
	Append(ctx context.Context, sessionID string, msg statex.Message, now time.Time) (int64, error)
	HistoryBefore(ctx context.Context, sessionID string, beforeID int64) ([]statex.Message, error)
}

// SessionBook tracks session rows and their patient linkage.
type SessionBook interface {
	Ensure(ctx context.Context, sessionID string, now time.Time) error
	AttachPatient(ctx context.Context, sessionID string, patientID int64) (bool, error)
}

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	UserTurnID int64
	State      *statex.WorkingState
	CacheHit   bool

	RespondedBy statex.AgentName
	Response    contractx.SpecialistResponse

	// AttachedPatient is set when this turn resolved the patient identity
	// for the first time; PersistReply links the session row to it.
	AttachedPatient *statex.PatientRecord
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}
