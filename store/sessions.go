package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// SessionStore manages session rows and the attach-once patient link.
type SessionStore struct {
	db *bun.DB
}

func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Ensure creates the session row if it does not exist yet.
func (s *SessionStore) Ensure(ctx context.Context, sessionID string, now time.Time) error {
	session := &Session{ID: sessionID, StartedAt: now.UTC()}
	_, err := s.db.NewInsert().
		Model(session).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ensure session %s: %w", sessionID, err)
	}
	return nil
}

// PatientRef reports the stored patient link for a session. ok is false when
// the session row does not exist.
func (s *SessionStore) PatientRef(ctx context.Context, sessionID string) (int64, bool, bool, error) {
	var session Session
	err := s.db.NewSelect().Model(&session).Where("id = ?", sessionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}
	if session.PatientID == nil {
		return 0, false, true, nil
	}
	return *session.PatientID, true, true, nil
}

// AttachPatient links a patient to a session exactly once. The WHERE guard
// makes concurrent attach attempts collapse to a single winner; later calls
// report false and change nothing.
func (s *SessionStore) AttachPatient(ctx context.Context, sessionID string, patientID int64) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("patient_id = ?", patientID).
		Where("id = ?", sessionID).
		Where("patient_id IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("attach patient to session %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attach patient rows affected: %w", err)
	}
	return affected == 1, nil
}
