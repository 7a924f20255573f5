package state

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeSessionSource struct {
	patientID int64
	linked    bool
	ok        bool
	err       error
}

func (f *fakeSessionSource) PatientRef(ctx context.Context, sessionID string) (int64, bool, bool, error) {
	if f.err != nil {
		return 0, false, false, f.err
	}
	return f.patientID, f.linked, f.ok, nil
}

type fakePatientSource struct {
	records map[int64]*PatientRecord
	err     error
	calls   int
}

func (f *fakePatientSource) Patient(ctx context.Context, id int64) (*PatientRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[id], nil
}

func TestRebuildUnknownSessionIsFreshIntake(t *testing.T) {
	t.Parallel()

	r := newTestReconstructor(t, &fakeSessionSource{}, &fakePatientSource{})
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	st, err := r.Rebuild(context.Background(), "s-new", nil, now)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if st.ActiveAgent != AgentIntake || st.HandoffToClinical {
		t.Fatalf("fresh session must be intake-owned, got %s handoff=%v", st.ActiveAgent, st.HandoffToClinical)
	}
	if st.Patient != nil {
		t.Fatalf("fresh session must have no patient, got %+v", st.Patient)
	}
}

func TestRebuildDerivesOwnershipAndPatient(t *testing.T) {
	t.Parallel()

	patients := &fakePatientSource{records: map[int64]*PatientRecord{
		42: {ID: 42, Name: "John Smith", Diagnosis: "CKD Stage 3"},
	}}
	r := newTestReconstructor(t, &fakeSessionSource{patientID: 42, linked: true, ok: true}, patients)

	history := []Message{
		{Role: RoleUser, Content: "I'm John Smith"},
		{Role: RoleAssistant, Agent: AgentIntake, Content: "I found your file, John Smith."},
		{Role: RoleUser, Content: "is my medication safe?"},
		{Role: RoleAssistant, Agent: AgentIntake, Content: "Let me connect you to the Clinical Agent."},
	}
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	st, err := r.Rebuild(context.Background(), "s1", history, now)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if st.ActiveAgent != AgentClinical || !st.HandoffToClinical {
		t.Fatalf("expected clinical ownership, got %s handoff=%v", st.ActiveAgent, st.HandoffToClinical)
	}
	if st.Patient == nil || st.Patient.ID != 42 {
		t.Fatalf("expected patient 42, got %+v", st.Patient)
	}
	if len(st.Messages) != len(history) {
		t.Fatalf("transcript length %d, want %d", len(st.Messages), len(history))
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestReconstructor(t,
		&fakeSessionSource{patientID: 7, linked: true, ok: true},
		&fakePatientSource{records: map[int64]*PatientRecord{7: {ID: 7, Name: "Jane Doe"}}},
	)

	history := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Agent: AgentIntake, Content: "what's your name?"},
	}
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := r.Rebuild(context.Background(), "s1", history, now)
	if err != nil {
		t.Fatalf("first Rebuild() error = %v", err)
	}
	second, err := r.Rebuild(context.Background(), "s1", history, now)
	if err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuild not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestRebuildStoreFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	r := newTestReconstructor(t, &fakeSessionSource{err: errors.New("connection refused")}, &fakePatientSource{})
	if _, err := r.Rebuild(context.Background(), "s1", nil, now); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("session read failure: expected ErrStoreUnavailable, got %v", err)
	}

	r = newTestReconstructor(t,
		&fakeSessionSource{patientID: 1, linked: true, ok: true},
		&fakePatientSource{err: errors.New("connection refused")},
	)
	if _, err := r.Rebuild(context.Background(), "s1", nil, now); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("patient read failure: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRebuildUnlinkedSessionSkipsPatientFetch(t *testing.T) {
	t.Parallel()

	patients := &fakePatientSource{}
	r := newTestReconstructor(t, &fakeSessionSource{ok: true}, patients)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	st, err := r.Rebuild(context.Background(), "s1", nil, now)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if st.Patient != nil {
		t.Fatalf("unlinked session must have no patient, got %+v", st.Patient)
	}
	if patients.calls != 0 {
		t.Fatalf("patient source must not be queried, got %d calls", patients.calls)
	}
}

func newTestReconstructor(t *testing.T, sessions SessionSource, patients PatientSource) *Reconstructor {
	t.Helper()
	r, err := NewReconstructor(sessions, patients)
	if err != nil {
		t.Fatalf("NewReconstructor() error = %v", err)
	}
	return r
}
