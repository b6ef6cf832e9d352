package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "SCHEDULED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
	SessionStatusNoShow     SessionStatus = "NO_SHOW"
)

type ReviewStatus string

const (
	ReviewStatusLocked    ReviewStatus = "LOCKED"    // занятие ещё не завершено
	ReviewStatusPending   ReviewStatus = "PENDING"   // можно оставить отзыв
	ReviewStatusSubmitted ReviewStatus = "SUBMITTED" // отзыв оставлен
)

// Session занятие, созданное при принятии предложения
type Session struct {
	ID                 uuid.UUID     `json:"id"`
	ProposalID         uuid.UUID     `json:"proposal_id"`
	ChatID             uuid.UUID     `json:"chat_id"`
	StudentID          uuid.UUID     `json:"student_id"`
	TutorID            uuid.UUID     `json:"tutor_id"`
	Subject            string        `json:"subject"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Status             SessionStatus `json:"status"`
	ReviewStatus       ReviewStatus  `json:"review_status"`
	CancelledBy        *uuid.UUID    `json:"cancelled_by,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// IsParty проверяет, что пользователь студент или репетитор занятия
func (s *Session) IsParty(userID uuid.UUID) bool {
	return s.StudentID == userID || s.TutorID == userID
}

// IsActive занятие ещё может состояться
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusScheduled || s.Status == SessionStatusInProgress
}

// NewSessionFromProposal материализует занятие из принятого предложения
func NewSessionFromProposal(p *Proposal, now time.Time) *Session {
	return &Session{
		ID:           *p.SessionID,
		ProposalID:   p.ID,
		ChatID:       p.ChatID,
		StudentID:    p.StudentID(),
		TutorID:      p.TutorID,
		Subject:      p.Subject,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		Status:       SessionStatusScheduled,
		ReviewStatus: ReviewStatusLocked,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
