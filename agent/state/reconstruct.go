package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrStoreUnavailable = errors.New("durable store unavailable")

// SessionSource exposes the persisted session row. PatientRef reports the
// stored patient link, if any; ok=false with a nil error means the session
// row does not exist yet.
type SessionSource interface {
	PatientRef(ctx context.Context, sessionID string) (patientID int64, linked bool, ok bool, err error)
}

// PatientSource fetches one patient record verbatim by id.
type PatientSource interface {
	Patient(ctx context.Context, id int64) (*PatientRecord, error)
}

// Reconstructor rebuilds a WorkingState purely from durable history when no
// cached copy exists. It never writes: rebuilding twice from the same
// history yields the same state.
type Reconstructor struct {
	sessions SessionSource
	patients PatientSource
}

func NewReconstructor(sessions SessionSource, patients PatientSource) (*Reconstructor, error) {
	if sessions == nil {
		return nil, errors.New("session source is required")
	}
	if patients == nil {
		return nil, errors.New("patient source is required")
	}
	return &Reconstructor{sessions: sessions, patients: patients}, nil
}

// Rebuild derives a WorkingState for sessionID from the ordered turn
// history, which must exclude the turn currently being processed. An unknown
// session id is not an error: it yields a fresh intake-owned state. Store
// failures surface as ErrStoreUnavailable with no partial state.
func (r *Reconstructor) Rebuild(ctx context.Context, sessionID string, history []Message, now time.Time) (*WorkingState, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	st := NewWorkingState(sessionID, now)
	st.Messages = append([]Message(nil), history...)

	patientID, linked, ok, err := r.sessions.PatientRef(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: read session %s: %v", ErrStoreUnavailable, sessionID, err)
	}
	if ok && linked {
		p, err := r.patients.Patient(ctx, patientID)
		if err != nil {
			return nil, fmt.Errorf("%w: read patient %d: %v", ErrStoreUnavailable, patientID, err)
		}
		if p != nil {
			st.Patient = p
		}
	}

	st.ActiveAgent, st.HandoffToClinical = ResolveOwnership(st.Messages)
	return st, nil
}
