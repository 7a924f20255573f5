package contract

import (
	"time"

	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

// TurnRequest is one inbound chat turn from the transport layer. An empty
// SessionID asks for a new session.
type TurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// TurnReply is the transport-facing result of a processed turn.
type TurnReply struct {
	SessionID  string          `json:"session_id"`
	Reply      string          `json:"reply"`
	Agent      statex.AgentName `json:"agent"`
	Citations  []string        `json:"citations"`
	SourceType string          `json:"source_type"`
}

const (
	SourceTypeKB  = "kb"
	SourceTypeWeb = "web"
)

// SpecialistRequest hands the active specialist the full working state plus
// the user turn it must answer.
type SpecialistRequest struct {
	State       *statex.WorkingState
	UserMessage string
}

// SpecialistResponse is what a specialist produced for one turn. Patient is
// non-nil only when a record lookup resolved this turn; the caller decides
// whether the session may still attach it. Handoff is only meaningful from
// the intake specialist.
type SpecialistResponse struct {
	Message    string
	Handoff    bool
	Patient    *statex.PatientRecord
	Citations  []string
	SourceType string
}

type AuditKind string

const (
	AuditRecordLookup   AuditKind = "record_lookup"
	AuditHandoff        AuditKind = "handoff"
	AuditKnowledgeQuery AuditKind = "knowledge_query"
	AuditExternalSearch AuditKind = "external_search"
	AuditError          AuditKind = "error"
)

// AuditEvent is one append-only observability record. The core writes these
// and never reads them back.
type AuditEvent struct {
	SessionID string
	Agent     statex.AgentName
	Kind      AuditKind
	Detail    map[string]any
	At        time.Time
}

// Passage is one retrieved reference snippet.
type Passage struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// SearchHit is one external-search result.
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}
