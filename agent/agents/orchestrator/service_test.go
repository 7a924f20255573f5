package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

type journalRow struct {
	id        int64
	sessionID string
	msg       statex.Message
}

type fakeJournal struct {
	mu        sync.Mutex
	rows      []journalRow
	nextID    int64
	appendErr error
}

func (f *fakeJournal) Append(ctx context.Context, sessionID string, msg statex.Message, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.nextID++
	f.rows = append(f.rows, journalRow{id: f.nextID, sessionID: sessionID, msg: msg})
	return f.nextID, nil
}

func (f *fakeJournal) HistoryBefore(ctx context.Context, sessionID string, beforeID int64) ([]statex.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []statex.Message
	for _, row := range f.rows {
		if row.sessionID == sessionID && row.id < beforeID {
			out = append(out, row.msg)
		}
	}
	return out, nil
}

func (f *fakeJournal) messages(sessionID string) []statex.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []statex.Message
	for _, row := range f.rows {
		if row.sessionID == sessionID {
			out = append(out, row.msg)
		}
	}
	return out
}

type fakeSessions struct {
	mu        sync.Mutex
	ensured   map[string]bool
	linked    map[string]int64
	ensureErr error
	attaches  int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{ensured: map[string]bool{}, linked: map[string]int64{}}
}

func (f *fakeSessions) Ensure(ctx context.Context, sessionID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.ensured[sessionID] = true
	return nil
}

func (f *fakeSessions) AttachPatient(ctx context.Context, sessionID string, patientID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attaches++
	if _, done := f.linked[sessionID]; done {
		return false, nil
	}
	f.linked[sessionID] = patientID
	return true, nil
}

func (f *fakeSessions) PatientRef(ctx context.Context, sessionID string) (int64, bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ensured[sessionID] {
		return 0, false, false, nil
	}
	id, linked := f.linked[sessionID]
	return id, linked, true, nil
}

type fakePatients struct {
	records map[int64]*statex.PatientRecord
}

func (f *fakePatients) Patient(ctx context.Context, id int64) (*statex.PatientRecord, error) {
	return f.records[id], nil
}

type fakeSpecialist struct {
	mu        sync.Mutex
	responses []contractx.SpecialistResponse
	err       error
	calls     int
	lastReqs  []contractx.SpecialistRequest
}

func (f *fakeSpecialist) Respond(ctx context.Context, req contractx.SpecialistRequest) (contractx.SpecialistResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReqs = append(f.lastReqs, req)
	if f.err != nil {
		return contractx.SpecialistResponse{}, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		return contractx.SpecialistResponse{}, fmt.Errorf("no specialist response left at call=%d", f.calls)
	}
	return f.responses[idx], nil
}

type fakeRegistry struct {
	intake   contractx.Specialist
	clinical contractx.Specialist
}

func (f *fakeRegistry) Intake() contractx.Specialist   { return f.intake }
func (f *fakeRegistry) Clinical() contractx.Specialist { return f.clinical }

func TestHandleTurnEmptyMessage(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeJournal{}, newFakeSessions(), statex.NewMemoryCache(),
		&fakeRegistry{intake: &fakeSpecialist{}, clinical: &fakeSpecialist{}}, nil)

	_, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "   "})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestHandleTurnMintsSessionID(t *testing.T) {
	t.Parallel()

	s := newTestService(t, &fakeJournal{}, newFakeSessions(), statex.NewMemoryCache(),
		&fakeRegistry{
			intake:   &fakeSpecialist{responses: []contractx.SpecialistResponse{{Message: "Hello! What's your name?"}}},
			clinical: &fakeSpecialist{},
		}, nil)

	reply, err := s.HandleTurn(context.Background(), contractx.TurnRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply.SessionID == "" {
		t.Fatal("missing session id must be minted")
	}
	if reply.Agent != statex.AgentIntake {
		t.Fatalf("first turn must be answered by intake, got %s", reply.Agent)
	}
}

func TestHandleTurnLogsBothSides(t *testing.T) {
	t.Parallel()

	journal := &fakeJournal{}
	intake := &fakeSpecialist{responses: []contractx.SpecialistResponse{{Message: "Could I get your name?"}}}

	s := newTestService(t, journal, newFakeSessions(), statex.NewMemoryCache(),
		&fakeRegistry{intake: intake, clinical: &fakeSpecialist{}}, nil)

	reply, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply.Reply != "Could I get your name?" {
		t.Fatalf("unexpected reply: %q", reply.Reply)
	}

	msgs := journal.messages("s1")
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant logged, got %d rows", len(msgs))
	}
	if msgs[0].Role != statex.RoleUser || msgs[0].Content != "hi" {
		t.Fatalf("unexpected first row: %+v", msgs[0])
	}
	if msgs[1].Role != statex.RoleAssistant || msgs[1].Agent != statex.AgentIntake {
		t.Fatalf("unexpected second row: %+v", msgs[1])
	}
}

func TestHandleTurnHandoffIsOneWayAndAttributed(t *testing.T) {
	t.Parallel()

	journal := &fakeJournal{}
	intake := &fakeSpecialist{responses: []contractx.SpecialistResponse{
		{Message: "Let me connect you to the Clinical Agent.", Handoff: true},
	}}
	clinical := &fakeSpecialist{responses: []contractx.SpecialistResponse{
		{Message: "Limit potassium in your diet.", Citations: []string{"renal_diet.md"}, SourceType: contractx.SourceTypeKB},
		{Message: "Yes, keep taking it with food.", SourceType: contractx.SourceTypeKB},
	}}

	s := newTestService(t, journal, newFakeSessions(), statex.NewMemoryCache(),
		&fakeRegistry{intake: intake, clinical: clinical}, nil)

	first, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "what can I eat?"})
	if err != nil {
		t.Fatalf("first turn error = %v", err)
	}
	// The reply that announces the handoff still belongs to intake.
	if first.Agent != statex.AgentIntake {
		t.Fatalf("handoff turn agent = %s, want %s", first.Agent, statex.AgentIntake)
	}

	second, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "so what can I eat?"})
	if err != nil {
		t.Fatalf("second turn error = %v", err)
	}
	if second.Agent != statex.AgentClinical {
		t.Fatalf("post-handoff turn agent = %s, want %s", second.Agent, statex.AgentClinical)
	}
	if len(second.Citations) != 1 {
		t.Fatalf("citations must pass through, got %#v", second.Citations)
	}

	third, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "and my lisinopril?"})
	if err != nil {
		t.Fatalf("third turn error = %v", err)
	}
	if third.Agent != statex.AgentClinical {
		t.Fatalf("clinical ownership must persist, got %s", third.Agent)
	}
	if intake.calls != 1 {
		t.Fatalf("intake must never run after handoff, got %d calls", intake.calls)
	}
}

func TestHandleTurnOwnershipSurvivesCacheLoss(t *testing.T) {
	t.Parallel()

	journal := &fakeJournal{}
	intake := &fakeSpecialist{responses: []contractx.SpecialistResponse{
		{Message: "Let me connect you to the Clinical Agent.", Handoff: true},
	}}
	clinical := &fakeSpecialist{responses: []contractx.SpecialistResponse{
		{Message: "Answering clinically.", SourceType: contractx.SourceTypeKB},
	}}

	// No cache at all: every turn reconstructs from the journal.
	s := newTestService(t, journal, newFakeSessions(), nil,
		&fakeRegistry{intake: intake, clinical: clinical}, nil)

	if _, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "diet question"}); err != nil {
		t.Fatalf("first turn error = %v", err)
	}
	second, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "again"})
	if err != nil {
		t.Fatalf("second turn error = %v", err)
	}
	if second.Agent != statex.AgentClinical {
		t.Fatalf("rebuilt session must stay clinical, got %s", second.Agent)
	}
}

func TestHandleTurnAttachesPatientOnce(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessions()
	john := &statex.PatientRecord{ID: 42, Name: "John Smith", Diagnosis: "CKD Stage 3"}
	other := &statex.PatientRecord{ID: 43, Name: "Jane Doe"}

	intake := &fakeSpecialist{responses: []contractx.SpecialistResponse{
		{Message: "I found your file, John Smith.", Patient: john},
		{Message: "I found your file, Jane Doe.", Patient: other},
	}}

	s := newTestService(t, &fakeJournal{}, sessions, statex.NewMemoryCache(),
		&fakeRegistry{intake: intake, clinical: &fakeSpecialist{}},
		&fakePatients{records: map[int64]*statex.PatientRecord{42: john}})

	if _, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "I'm John Smith"}); err != nil {
		t.Fatalf("first turn error = %v", err)
	}
	if _, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "actually I'm Jane"}); err != nil {
		t.Fatalf("second turn error = %v", err)
	}

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if sessions.linked["s1"] != 42 {
		t.Fatalf("first resolution must win, got patient %d", sessions.linked["s1"])
	}
	if sessions.attaches != 1 {
		t.Fatalf("attach must run once, got %d calls", sessions.attaches)
	}
}

func TestHandleTurnStoreDownBecomesRetryReply(t *testing.T) {
	t.Parallel()

	journal := &fakeJournal{appendErr: errors.New("connection refused")}
	s := newTestService(t, journal, newFakeSessions(), statex.NewMemoryCache(),
		&fakeRegistry{intake: &fakeSpecialist{}, clinical: &fakeSpecialist{}}, nil)

	reply, err := s.HandleTurn(context.Background(), contractx.TurnRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("store outage must degrade, not error: %v", err)
	}
	if reply.Reply != replyStoreDown {
		t.Fatalf("reply = %q, want %q", reply.Reply, replyStoreDown)
	}
}

func TestHandleTurnSerializesSameSession(t *testing.T) {
	t.Parallel()

	journal := &fakeJournal{}
	responses := make([]contractx.SpecialistResponse, 8)
	for i := range responses {
		responses[i] = contractx.SpecialistResponse{Message: fmt.Sprintf("reply %d", i)}
	}

	s := newTestService(t, journal, newFakeSessions(), statex.NewMemoryCache(),
		&fakeRegistry{intake: &fakeSpecialist{responses: responses}, clinical: &fakeSpecialist{}}, nil)

	var wg sync.WaitGroup
	for i := 0; i < len(responses); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.HandleTurn(context.Background(), contractx.TurnRequest{
				SessionID: "s1",
				Message:   fmt.Sprintf("msg %d", i),
			}); err != nil {
				t.Errorf("concurrent turn %d error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	msgs := journal.messages("s1")
	if len(msgs) != 2*len(responses) {
		t.Fatalf("expected %d journal rows, got %d", 2*len(responses), len(msgs))
	}
	// Serialized turns always log user then assistant in strict alternation.
	for i, m := range msgs {
		wantRole := statex.RoleUser
		if i%2 == 1 {
			wantRole = statex.RoleAssistant
		}
		if m.Role != wantRole {
			t.Fatalf("row %d role = %s, want %s", i, m.Role, wantRole)
		}
	}
}

func newTestService(
	t *testing.T,
	journal *fakeJournal,
	sessions *fakeSessions,
	cache statex.Cache,
	models contractx.Registry,
	patients *fakePatients,
) *Service {
	t.Helper()

	if patients == nil {
		patients = &fakePatients{records: map[int64]*statex.PatientRecord{}}
	}
	rebuilder, err := statex.NewReconstructor(sessions, patients)
	if err != nil {
		t.Fatalf("NewReconstructor() error = %v", err)
	}

	s, err := New(journal, sessions, cache, rebuilder, models)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}
