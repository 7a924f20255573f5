package state

import (
	"errors"
	"strings"
	"time"
)

// AgentName identifies which specialist owns a session.
type AgentName string

const (
	AgentIntake   AgentName = "intake"
	AgentClinical AgentName = "clinical"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a session transcript. Agent is set only for
// assistant turns and names the specialist that produced the text.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Agent   AgentName `json:"agent,omitempty"`
}

// PatientRecord is the canonical shape of a resolved patient, identical to
// what a successful record lookup produces. Read-only from this package's
// point of view.
type PatientRecord struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	DischargeDate string   `json:"discharge_date"`
	Diagnosis     string   `json:"diagnosis"`
	Medications   []string `json:"medications"`
	Diet          string   `json:"diet,omitempty"`
	WarningSigns  string   `json:"warning_signs,omitempty"`
	Instructions  string   `json:"instructions,omitempty"`
}

var (
	ErrInvalidSession  = errors.New("session id is empty")
	ErrNilWorkingState = errors.New("working state is nil")
)

// WorkingState is the full derived context needed to process the next turn:
// transcript, resolved patient (or nil), active specialist, handoff flag.
// It is transient. Everything in it can be rebuilt from the interaction log
// and the patient table, so losing a cached copy is a latency cost, never a
// correctness one.
type WorkingState struct {
	SessionID         string         `json:"session_id"`
	Messages          []Message      `json:"messages"`
	Patient           *PatientRecord `json:"patient,omitempty"`
	ActiveAgent       AgentName      `json:"active_agent"`
	HandoffToClinical bool           `json:"handoff_to_clinical"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewWorkingState(sessionID string, now time.Time) *WorkingState {
	return &WorkingState{
		SessionID:   sessionID,
		ActiveAgent: AgentIntake,
		UpdatedAt:   now.UTC(),
	}
}

func (s *WorkingState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *WorkingState) AppendUser(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: content})
}

func (s *WorkingState) AppendAssistant(agent AgentName, content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Agent: agent, Content: content})
}

// LatestUserMessage returns the most recent user turn, or "".
func (s *WorkingState) LatestUserMessage() string {
	if s == nil {
		return ""
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// AttachPatient links a resolved record to the state exactly once. A second
// call is a no-op and reports false, even for a different record.
func (s *WorkingState) AttachPatient(p *PatientRecord) bool {
	if s == nil || p == nil {
		return false
	}
	if s.Patient != nil {
		return false
	}
	s.Patient = p
	return true
}

func (s *WorkingState) Validate() error {
	if s == nil {
		return ErrNilWorkingState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	switch s.ActiveAgent {
	case AgentIntake, AgentClinical:
	default:
		return errors.New("unknown active agent: " + string(s.ActiveAgent))
	}
	if s.ActiveAgent == AgentClinical && !s.HandoffToClinical {
		return errors.New("clinical ownership requires the handoff flag")
	}
	return nil
}

// Clone deep-copies the state so cached copies never alias a live turn.
func (s *WorkingState) Clone() *WorkingState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	if s.Patient != nil {
		p := *s.Patient
		p.Medications = append([]string(nil), s.Patient.Medications...)
		out.Patient = &p
	}
	return &out
}
