package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventRequestCreated     EventType = "request.created"
	EventRequestAccepted    EventType = "request.accepted"
	EventRequestCancelled   EventType = "request.cancelled"
	EventRequestExtended    EventType = "request.extended"
	EventRequestExpired     EventType = "request.expired"
	EventRequestChatPending EventType = "request.chat_pending"

	EventSlotBooked    EventType = "slot.booked"
	EventSlotCancelled EventType = "slot.cancelled"
	EventSlotCompleted EventType = "slot.completed"

	EventProposalCreated         EventType = "proposal.created"
	EventProposalAccepted        EventType = "proposal.accepted"
	EventProposalRejected        EventType = "proposal.rejected"
	EventProposalCounterProposed EventType = "proposal.counter_proposed"
	EventProposalExpired         EventType = "proposal.expired"
	EventProposalCancelled       EventType = "proposal.cancelled"

	EventSessionCancelled EventType = "session.cancelled"
	EventSessionCompleted EventType = "session.completed"
	EventSessionNoShow    EventType = "session.no_show"
)

// Event изменение состояния, о котором нужно уведомить участников
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	ChatID     *uuid.UUID     `json:"chat_id,omitempty"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	Recipients []uuid.UUID    `json:"recipients"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// DedupeKey ключ идемпотентности для приёмников
func (e *Event) DedupeKey(sink string) string {
	return sink + ":" + e.ID.String()
}

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusLeased  OutboxStatus = "LEASED"
	OutboxStatusDone    OutboxStatus = "DONE"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// OutboxEvent событие в очереди доставки
type OutboxEvent struct {
	ID             uuid.UUID
	Event          Event
	Status         OutboxStatus
	AttemptCount   int
	NextAttemptAt  time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
