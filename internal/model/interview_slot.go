package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusBooked    SlotStatus = "BOOKED"
	SlotStatusCompleted SlotStatus = "COMPLETED"
	SlotStatusCancelled SlotStatus = "CANCELLED"
)

// InterviewSlot окно для интервью с кандидатом
type InterviewSlot struct {
	ID                 uuid.UUID  `json:"id"`
	OwnerID            uuid.UUID  `json:"owner_id"`
	ApplicantID        *uuid.UUID `json:"applicant_id,omitempty"`   // указатель - может быть nil
	ApplicationID      *uuid.UUID `json:"application_id,omitempty"` // заявка кандидата во внешней системе
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	Status             SlotStatus `json:"status"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	AdminOverride      bool       `json:"admin_override"` // отмена админом после закрытия окна
	BookedAt           *time.Time `json:"booked_at,omitempty"`
	Version            int64      `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Overlaps проверяет пересечение полуинтервалов [start, end)
func (s *InterviewSlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// HoldsTime проверяет, занимает ли слот время владельца
func (s *InterviewSlot) HoldsTime() bool {
	return s.Status != SlotStatusCancelled
}

// IsParticipant проверяет, что пользователь владелец или записавшийся кандидат
func (s *InterviewSlot) IsParticipant(userID uuid.UUID) bool {
	if s.OwnerID == userID {
		return true
	}
	return s.ApplicantID != nil && *s.ApplicantID == userID
}
