package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// Хранилища, с которыми работают сервисы. Реализации: internal/repository (PostgreSQL)
// и internal/repository/memory. Get* возвращают (nil, nil), если строки нет.
// Update* записывают сущность только если версия в хранилище равна expectedVersion,
// иначе base.ErrVersionConflict; при успехе Version увеличивается.

type RequestStore interface {
	Create(ctx context.Context, req *model.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	Update(ctx context.Context, req *model.Request, expectedVersion int64) error
	ListByRequester(ctx context.Context, requesterID uuid.UUID, filter model.ListFilter) ([]*model.Request, error)
	ListOpen(ctx context.Context, kind model.RequestKind, now time.Time, filter model.ListFilter) ([]*model.Request, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Request, error)
}

type SlotStore interface {
	// Create возвращает errs.Overlap при пересечении с активным слотом того же владельца
	Create(ctx context.Context, slot *model.InterviewSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.InterviewSlot, error)
	Update(ctx context.Context, slot *model.InterviewSlot, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID, expectedVersion int64) error
	ListAvailable(ctx context.Context, now time.Time, filter model.ListFilter) ([]*model.InterviewSlot, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, filter model.ListFilter) ([]*model.InterviewSlot, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID, filter model.ListFilter) ([]*model.InterviewSlot, error)
}

type ProposalStore interface {
	Create(ctx context.Context, p *model.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Proposal, error)
	Update(ctx context.Context, p *model.Proposal, expectedVersion int64) error
	// CounterPropose атомарно закрывает original и создаёт counter
	CounterPropose(ctx context.Context, original *model.Proposal, expectedVersion int64, counter *model.Proposal) error
	ListByChat(ctx context.Context, chatID uuid.UUID, filter model.ListFilter) ([]*model.Proposal, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Proposal, error)
	// ListAcceptedWithoutSession принятые предложения, у которых занятие так и не записалось
	ListAcceptedWithoutSession(ctx context.Context, limit int) ([]*model.Proposal, error)
}

type SessionStore interface {
	// Create идемпотентен по ID: повторная вставка возвращает created=false
	Create(ctx context.Context, s *model.Session) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Update(ctx context.Context, s *model.Session, expectedVersion int64) error
	ListByUser(ctx context.Context, userID uuid.UUID, filter model.ListFilter) ([]*model.Session, error)
	ListEnded(ctx context.Context, now time.Time, limit int) ([]*model.Session, error)
}

type RecurringSlotStore interface {
	Create(ctx context.Context, tpl *model.RecurringSlotTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringSlotTemplate, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.RecurringSlotTemplate, error)
	ListActive(ctx context.Context) ([]*model.RecurringSlotTemplate, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ContactStore interface {
	Upsert(ctx context.Context, c *model.Contact) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Contact, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.Contact, error)
	SetMuted(ctx context.Context, userID uuid.UUID, muted bool) error
}

// ChatGateway внешний сервис чатов
type ChatGateway interface {
	// CreateOrGet возвращает единственный чат пары пользователей
	CreateOrGet(ctx context.Context, userA, userB uuid.UUID) (*model.Chat, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Chat, error)
}

// Relay принимает события после коммита. Ошибки публикации не откатывают переход.
type Relay interface {
	Publish(ctx context.Context, event model.Event) error
}
