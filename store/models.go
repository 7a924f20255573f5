package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Patient rows are created by seeding or an administrative process and are
// read-only for the assistant.
type Patient struct {
	bun.BaseModel `bun:"table:patients,alias:p"`

	ID                    int64     `bun:"id,pk,autoincrement"`
	Name                  string    `bun:"name,notnull"`
	DischargeDate         time.Time `bun:"discharge_date,notnull"`
	PrimaryDiagnosis      string    `bun:"primary_diagnosis,notnull"`
	Medications           []string  `bun:"medications,type:jsonb"`
	DietaryRestrictions   string    `bun:"dietary_restrictions"`
	FollowUp              string    `bun:"follow_up"`
	WarningSigns          string    `bun:"warning_signs"`
	DischargeInstructions string    `bun:"discharge_instructions"`
	CreatedAt             time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Session links a chat session to at most one patient. PatientID is set the
// first time a lookup resolves and never changes afterwards.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID        string    `bun:"id,pk"`
	PatientID *int64    `bun:"patient_id"`
	StartedAt time.Time `bun:"started_at,nullzero,notnull,default:current_timestamp"`
}

// Interaction is one append-only turn of a session. Agent is empty for user
// turns. Ordering within a session follows (timestamp, id).
type Interaction struct {
	bun.BaseModel `bun:"table:interactions,alias:i"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SessionID string    `bun:"session_id,notnull"`
	Timestamp time.Time `bun:"timestamp,nullzero,notnull,default:current_timestamp"`
	Role      string    `bun:"role,notnull"`
	Agent     string    `bun:"agent"`
	Message   string    `bun:"message,notnull"`
}

// AgentEvent is one write-only audit record.
type AgentEvent struct {
	bun.BaseModel `bun:"table:agent_events,alias:e"`

	ID        int64          `bun:"id,pk,autoincrement"`
	SessionID string         `bun:"session_id,notnull"`
	Timestamp time.Time      `bun:"timestamp,nullzero,notnull,default:current_timestamp"`
	Agent     string         `bun:"agent,notnull"`
	EventType string         `bun:"event_type,notnull"`
	Details   map[string]any `bun:"details,type:jsonb"`
}

// KnowledgeChunk is one embedded slice of the reference corpus.
type KnowledgeChunk struct {
	bun.BaseModel `bun:"table:knowledge_chunks,alias:k"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Source    string    `bun:"source,notnull"`
	Content   string    `bun:"content,notnull"`
	Embedding []float64 `bun:"embedding,type:jsonb"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

const dateLayout = "2006-01-02"
