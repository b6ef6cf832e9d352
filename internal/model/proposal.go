package model

import (
	"time"

	"github.com/google/uuid"
)

type ProposalStatus string

const (
	ProposalStatusProposed        ProposalStatus = "PROPOSED"
	ProposalStatusAccepted        ProposalStatus = "ACCEPTED"
	ProposalStatusRejected        ProposalStatus = "REJECTED"
	ProposalStatusCounterProposed ProposalStatus = "COUNTER_PROPOSED"
	ProposalStatusExpired         ProposalStatus = "EXPIRED"
	ProposalStatusCancelled       ProposalStatus = "CANCELLED"
	ProposalStatusCompleted       ProposalStatus = "COMPLETED"
)

// Proposal предложение времени занятия, встроенное в сообщение чата
type Proposal struct {
	ID                 uuid.UUID      `json:"id"`
	ChatID             uuid.UUID      `json:"chat_id"`
	ProposerID         uuid.UUID      `json:"proposer_id"`
	CounterpartID      uuid.UUID      `json:"counterpart_id"`
	TutorID            uuid.UUID      `json:"tutor_id"` // репетитор в паре, не меняется при встречных предложениях
	Subject            string         `json:"subject"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time"`
	Status             ProposalStatus `json:"status"`
	ExpiresAt          time.Time      `json:"expires_at"`
	SessionID          *uuid.UUID     `json:"session_id,omitempty"`
	ParentID           *uuid.UUID     `json:"parent_id,omitempty"` // исходное предложение для встречного
	Round              int            `json:"round"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	RespondedAt        *time.Time     `json:"responded_at,omitempty"`
	Version            int64          `json:"version"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsParty проверяет, участвует ли пользователь в переговорах
func (p *Proposal) IsParty(userID uuid.UUID) bool {
	return p.ProposerID == userID || p.CounterpartID == userID
}

// StudentID возвращает студента пары
func (p *Proposal) StudentID() uuid.UUID {
	if p.ProposerID == p.TutorID {
		return p.CounterpartID
	}
	return p.ProposerID
}
