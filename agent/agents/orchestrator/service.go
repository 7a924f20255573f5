// Package orchestrator runs the full turn pipeline: log the message, rebuild
// or fetch the working state, dispatch the owning specialist, apply the
// transition, and persist the reply.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	contractx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/contract"
	turnnode "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/nodes/turn"
	statex "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/agent/state"
)

var (
	ErrInvalidMessage = turnnode.ErrInvalidMessage
	ErrInvalidSession = turnnode.ErrInvalidSession
)

const replyStoreDown = "I'm having trouble reaching the patient system right now. Please try again in a moment."

type Service struct {
	journal   turnnode.TurnJournal
	sessions  turnnode.SessionBook
	cache     statex.Cache
	rebuilder *statex.Reconstructor
	models    contractx.Registry

	graphRunner compose.Runnable[turnnode.GraphInput, contractx.TurnReply]

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

func New(
	journal turnnode.TurnJournal,
	sessions turnnode.SessionBook,
	cache statex.Cache,
	rebuilder *statex.Reconstructor,
	models contractx.Registry,
) (*Service, error) {
	if journal == nil {
		return nil, errors.New("turn journal is required")
	}
	if sessions == nil {
		return nil, errors.New("session book is required")
	}
	if rebuilder == nil {
		return nil, errors.New("state reconstructor is required")
	}
	if models == nil {
		return nil, errors.New("specialist registry is required")
	}

	s := &Service{
		journal:   journal,
		sessions:  sessions,
		cache:     cache,
		rebuilder: rebuilder,
		models:    models,
		now:       time.Now,
		locks:     make(map[string]*sessionLock),
	}

	graphRunner, err := s.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// HandleTurn processes one user message. Turns for the same session run one
// at a time; a fresh session id is minted when the request carries none.
func (s *Service) HandleTurn(ctx context.Context, req contractx.TurnRequest) (contractx.TurnReply, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	lock := s.lockSession(sessionID)
	defer s.unlockSession(sessionID, lock)

	reply, err := s.graphRunner.Invoke(ctx, turnnode.GraphInput{
		SessionID: sessionID,
		Text:      req.Message,
	})
	if err != nil {
		if errors.Is(err, statex.ErrStoreUnavailable) {
			return contractx.TurnReply{
				SessionID: sessionID,
				Reply:     replyStoreDown,
				Agent:     statex.AgentIntake,
			}, nil
		}
		return contractx.TurnReply{}, err
	}
	return reply, nil
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (s *Service) lockSession(sessionID string) *sessionLock {
	s.mu.Lock()
	lock := s.locks[sessionID]
	if lock == nil {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *Service) unlockSession(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, sessionID)
	}
	s.mu.Unlock()
}
