package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

// InteractionStore is the append-only interaction log. Rows are never
// updated or deleted; (timestamp, id) is the authoritative order within a
// session.
type InteractionStore struct {
	db *bun.DB
}

func NewInteractionStore(db *bun.DB) *InteractionStore {
	return &InteractionStore{db: db}
}

// Append writes one turn and returns its id.
func (s *InteractionStore) Append(ctx context.Context, sessionID string, msg statex.Message, now time.Time) (int64, error) {
	row := &Interaction{
		SessionID: sessionID,
		Timestamp: now.UTC(),
		Role:      string(msg.Role),
		Agent:     string(msg.Agent),
		Message:   msg.Content,
	}
	_, err := s.db.NewInsert().Model(row).Returning("id").Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("append interaction for session %s: %w", sessionID, err)
	}
	return row.ID, nil
}

// HistoryBefore returns the ordered transcript of a session, excluding the
// turn with id beforeID and anything after it. Passing the id of the turn
// being processed yields exactly the history the reconstructor needs.
func (s *InteractionStore) HistoryBefore(ctx context.Context, sessionID string, beforeID int64) ([]statex.Message, error) {
	var rows []Interaction
	err := s.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Where("id < ?", beforeID).
		Order("timestamp ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history for session %s: %w", sessionID, err)
	}

	messages := make([]statex.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, statex.Message{
			Role:    statex.Role(row.Role),
			Agent:   statex.AgentName(row.Agent),
			Content: row.Message,
		})
	}
	return messages, nil
}
