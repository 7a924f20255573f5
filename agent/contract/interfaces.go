package contract

import (
	"context"

	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

// Specialist is the single capability every agent implements: given working
// state and the new user turn, produce a reply and any state-affecting
// signals.
type Specialist interface {
	Respond(ctx context.Context, req SpecialistRequest) (SpecialistResponse, error)
}

// Registry resolves the concrete specialist for each session owner.
type Registry interface {
	Intake() Specialist
	Clinical() Specialist
}

// PatientDirectory is the record-store collaborator. Search applies the
// fuzzy policy (case-insensitive substring over the cleaned full name, then
// per-token retry) and returns every candidate; callers classify the count.
type PatientDirectory interface {
	Search(ctx context.Context, nameFragment string) ([]statex.PatientRecord, error)
}

// KnowledgeRetriever is the semantic-retrieval collaborator over the
// reference corpus. The result list is ordered and bounded to a small k.
type KnowledgeRetriever interface {
	Query(ctx context.Context, question string, patientContext string) ([]Passage, error)
}

// WebSearcher is the external-search collaborator for recency-sensitive
// queries.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

// AuditSink appends observability events. Implementations must tolerate the
// caller ignoring the returned error: audit loss never blocks a turn.
type AuditSink interface {
	Append(ctx context.Context, ev AuditEvent) error
}
