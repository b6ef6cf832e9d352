package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestKind string

const (
	RequestKindTrial   RequestKind = "TRIAL"   // бесплатное пробное занятие
	RequestKindSession RequestKind = "SESSION" // платное занятие
)

// Valid проверяет вид запроса
func (k RequestKind) Valid() bool {
	return k == RequestKindTrial || k == RequestKindSession
}

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"   // ждёт репетитора
	RequestStatusAccepted  RequestStatus = "ACCEPTED"  // принят, чат открыт
	RequestStatusExpired   RequestStatus = "EXPIRED"   // истёк без ответа
	RequestStatusCancelled RequestStatus = "CANCELLED" // отозван студентом
)

// RequestPayload данные, которые заполняет студент
type RequestPayload struct {
	Subject       string `json:"subject"`
	GradeLevel    string `json:"grade_level"`
	SchoolType    string `json:"school_type"`
	Description   string `json:"description"`
	LearningGoals string `json:"learning_goals"`
}

// Request запрос студента на подбор репетитора (trial или session)
type Request struct {
	ID               uuid.UUID     `json:"id"`
	RequesterID      uuid.UUID     `json:"requester_id"`
	Kind             RequestKind   `json:"kind"`
	Subject          string        `json:"subject"`
	GradeLevel       string        `json:"grade_level"`
	SchoolType       string        `json:"school_type"`
	Description      string        `json:"description"`
	LearningGoals    string        `json:"learning_goals"`
	Status           RequestStatus `json:"status"`
	ExpiresAt        time.Time     `json:"expires_at"`
	ExtensionCount   int           `json:"extension_count"`
	AcceptedByUserID *uuid.UUID    `json:"accepted_by_user_id,omitempty"`
	AcceptedAt       *time.Time    `json:"accepted_at,omitempty"`
	ChatID           *uuid.UUID    `json:"chat_id,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
	Version          int64         `json:"version"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IsPending проверяет, ждёт ли запрос ответа
func (r *Request) IsPending() bool {
	return r.Status == RequestStatusPending
}

// IsExpiredAt проверяет, наступил ли дедлайн к моменту now
func (r *Request) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
