package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
)

// AuditStore appends agent events. The core never reads them back.
type AuditStore struct {
	db *bun.DB
}

func NewAuditStore(db *bun.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, ev contractx.AuditEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	row := &AgentEvent{
		SessionID: ev.SessionID,
		Timestamp: at.UTC(),
		Agent:     string(ev.Agent),
		EventType: string(ev.Kind),
		Details:   ev.Detail,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("append agent event for session %s: %w", ev.SessionID, err)
	}
	return nil
}
