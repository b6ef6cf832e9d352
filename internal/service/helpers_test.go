package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/memory"
)

// T0 понедельник, 09:00 UTC
var T0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type recordingRelay struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (r *recordingRelay) Publish(_ context.Context, event model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingRelay) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingRelay) last() model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	clock    *clock.Fake
	relay    *recordingRelay
	db       *memory.DB
	chats    *memory.ChatRepository
	sessions *memory.SessionRepository

	requests  *RequestService
	slots     *SlotService
	proposals *ProposalService
	recurring *RecurringSlotService
	contacts  *ContactService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := memory.NewDB()
	clk := clock.NewFake(T0)
	relay := &recordingRelay{}
	logger := zap.NewNop()
	policy := model.DefaultPolicy()

	chats := memory.NewChatRepository(db)
	sessions := memory.NewSessionRepository(db)
	slots := NewSlotService(memory.NewInterviewSlotRepository(db), relay, clk, policy, logger)

	return &harness{
		t:        t,
		ctx:      context.Background(),
		clock:    clk,
		relay:    relay,
		db:       db,
		chats:    chats,
		sessions: sessions,
		requests: NewRequestService(memory.NewRequestRepository(db), chats, relay, clk, policy, logger),
		slots:    slots,
		proposals: NewProposalService(
			memory.NewProposalRepository(db), sessions, chats, relay, clk, policy, logger,
		),
		recurring: NewRecurringSlotService(memory.NewRecurringSlotRepository(db), slots, clk, logger),
		contacts:  NewContactService(memory.NewContactRepository(db), clk, logger),
	}
}

func actor(role model.Role) model.Actor {
	return model.Actor{ID: uuid.New(), Role: role}
}

var (
	student   = func() model.Actor { return actor(model.RoleStudent) }
	tutor     = func() model.Actor { return actor(model.RoleTutor) }
	applicant = func() model.Actor { return actor(model.RoleApplicant) }
	admin     = func() model.Actor { return actor(model.RoleAdmin) }
)

func validPayload() model.RequestPayload {
	return model.RequestPayload{
		Subject:    "Математика",
		GradeLevel: "9",
		SchoolType: "Гимназия",
	}
}
