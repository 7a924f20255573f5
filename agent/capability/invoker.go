// Package capability mediates the structured actions a specialist may take:
// record lookup, knowledge query, external search. The set is closed and
// dispatched at compile time; every invocation is normalized into a tagged
// Result and audited exactly once, whatever the outcome.
package capability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

type Kind string

const (
	KindRecordLookup   Kind = "patient_record.lookup"
	KindKnowledgeQuery Kind = "knowledge_base.query"
	KindExternalSearch Kind = "web.search"
)

// ParseKind maps a tool-call name onto the closed capability set.
func ParseKind(tool string) (Kind, bool) {
	switch Kind(strings.TrimSpace(tool)) {
	case KindRecordLookup:
		return KindRecordLookup, true
	case KindKnowledgeQuery:
		return KindKnowledgeQuery, true
	case KindExternalSearch:
		return KindExternalSearch, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusResolved  Status = "resolved"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not_found"
	StatusError     Status = "error"
)

// Candidate is the disambiguation view of one of several matching records.
type Candidate struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DischargeDate string `json:"discharge_date"`
}

// Args carries the structured arguments of a capability invocation. Only
// the fields relevant to the kind are set.
type Args struct {
	Name           string `json:"name,omitempty"`
	Question       string `json:"question,omitempty"`
	PatientContext string `json:"patient_context,omitempty"`
	Query          string `json:"query,omitempty"`
}

// ArgsFromMap decodes loosely-typed tool-call arguments.
func ArgsFromMap(m map[string]any) Args {
	str := func(key string) string {
		if v, ok := m[key].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	return Args{
		Name:           str("name"),
		Question:       str("question"),
		PatientContext: str("patient_context"),
		Query:          str("query"),
	}
}

// Result is the tagged outcome of one invocation. Exactly one of the payload
// groups is populated, matching Kind and Status.
type Result struct {
	Kind       Kind
	Status     Status
	Record     *statex.PatientRecord
	Candidates []Candidate
	Passages   []contractx.Passage
	Hits       []contractx.SearchHit
	Err        string
}

const defaultTimeout = 30 * time.Second

// Invoker dispatches to the collaborators behind each capability.
type Invoker struct {
	directory contractx.PatientDirectory
	retriever contractx.KnowledgeRetriever
	search    contractx.WebSearcher
	audit     contractx.AuditSink
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Invoker)

func WithTimeout(d time.Duration) Option {
	return func(iv *Invoker) {
		if d > 0 {
			iv.timeout = d
		}
	}
}

func NewInvoker(
	directory contractx.PatientDirectory,
	retriever contractx.KnowledgeRetriever,
	search contractx.WebSearcher,
	audit contractx.AuditSink,
	opts ...Option,
) (*Invoker, error) {
	if directory == nil {
		return nil, errors.New("patient directory is required")
	}
	if retriever == nil {
		return nil, errors.New("knowledge retriever is required")
	}
	if search == nil {
		return nil, errors.New("web searcher is required")
	}
	if audit == nil {
		return nil, errors.New("audit sink is required")
	}

	iv := &Invoker{
		directory: directory,
		retriever: retriever,
		search:    search,
		audit:     audit,
		timeout:   defaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(iv)
		}
	}
	return iv, nil
}

// Invoke dispatches by capability kind. Unknown kinds never reach this
// switch; callers gate on ParseKind first.
func (iv *Invoker) Invoke(ctx context.Context, agent statex.AgentName, sessionID string, kind Kind, args Args) Result {
	switch kind {
	case KindRecordLookup:
		return iv.LookupRecord(ctx, agent, sessionID, args.Name)
	case KindKnowledgeQuery:
		return iv.QueryKnowledge(ctx, agent, sessionID, args.Question, args.PatientContext)
	case KindExternalSearch:
		return iv.SearchExternal(ctx, agent, sessionID, args.Query)
	default:
		return Result{Kind: kind, Status: StatusError, Err: "unknown capability"}
	}
}

// LookupRecord searches the patient directory and classifies the match
// count: exactly one is resolved, several ambiguous, none not-found.
func (iv *Invoker) LookupRecord(ctx context.Context, agent statex.AgentName, sessionID string, name string) Result {
	res := Result{Kind: KindRecordLookup}

	ctx, cancel := iv.bound(ctx)
	defer cancel()

	records, err := iv.directory.Search(ctx, name)
	switch {
	case err != nil:
		res.Status = StatusError
		res.Err = err.Error()
	case len(records) == 0:
		res.Status = StatusNotFound
	case len(records) == 1:
		res.Status = StatusResolved
		record := records[0]
		res.Record = &record
	default:
		res.Status = StatusAmbiguous
		res.Candidates = make([]Candidate, 0, len(records))
		for _, r := range records {
			res.Candidates = append(res.Candidates, Candidate{
				ID:            r.ID,
				Name:          r.Name,
				DischargeDate: r.DischargeDate,
			})
		}
	}

	iv.emit(ctx, contractx.AuditEvent{
		SessionID: sessionID,
		Agent:     agent,
		Kind:      contractx.AuditRecordLookup,
		Detail:    map[string]any{"name": name, "status": string(res.Status)},
	})
	return res
}

// QueryKnowledge runs a retrieval over the reference corpus, optionally
// narrowed by patient context.
func (iv *Invoker) QueryKnowledge(ctx context.Context, agent statex.AgentName, sessionID string, question string, patientContext string) Result {
	res := Result{Kind: KindKnowledgeQuery}

	ctx, cancel := iv.bound(ctx)
	defer cancel()

	passages, err := iv.retriever.Query(ctx, question, patientContext)
	if err != nil {
		res.Status = StatusError
		res.Err = err.Error()
	} else if len(passages) == 0 {
		res.Status = StatusNotFound
	} else {
		res.Status = StatusResolved
		res.Passages = passages
	}

	iv.emit(ctx, contractx.AuditEvent{
		SessionID: sessionID,
		Agent:     agent,
		Kind:      contractx.AuditKnowledgeQuery,
		Detail:    map[string]any{"question": question, "status": string(res.Status)},
	})
	return res
}

// SearchExternal runs the external search collaborator.
func (iv *Invoker) SearchExternal(ctx context.Context, agent statex.AgentName, sessionID string, query string) Result {
	res := Result{Kind: KindExternalSearch}

	ctx, cancel := iv.bound(ctx)
	defer cancel()

	hits, err := iv.search.Search(ctx, query)
	if err != nil {
		res.Status = StatusError
		res.Err = err.Error()
	} else if len(hits) == 0 {
		res.Status = StatusNotFound
	} else {
		res.Status = StatusResolved
		res.Hits = hits
	}

	iv.emit(ctx, contractx.AuditEvent{
		SessionID: sessionID,
		Agent:     agent,
		Kind:      contractx.AuditExternalSearch,
		Detail:    map[string]any{"query": query, "status": string(res.Status)},
	})
	return res
}

// NoteHandoff records a handoff event detected in specialist output.
func (iv *Invoker) NoteHandoff(ctx context.Context, agent statex.AgentName, sessionID string, reason string) {
	iv.emit(ctx, contractx.AuditEvent{
		SessionID: sessionID,
		Agent:     agent,
		Kind:      contractx.AuditHandoff,
		Detail:    map[string]any{"reason": reason},
	})
}

// NoteError records a recovered failure.
func (iv *Invoker) NoteError(ctx context.Context, agent statex.AgentName, sessionID string, detail map[string]any) {
	iv.emit(ctx, contractx.AuditEvent{
		SessionID: sessionID,
		Agent:     agent,
		Kind:      contractx.AuditError,
		Detail:    detail,
	})
}

// emit writes one audit event. Audit loss must never block the user-facing
// turn, so failures are logged and swallowed here.
func (iv *Invoker) emit(ctx context.Context, ev contractx.AuditEvent) {
	ev.At = iv.now().UTC()
	if err := iv.audit.Append(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).
			Str("session_id", ev.SessionID).
			Str("kind", string(ev.Kind)).
			Msg("audit append failed")
	}
}

func (iv *Invoker) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, iv.timeout)
}
