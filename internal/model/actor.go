package model

import "github.com/google/uuid"

// Role роль аутентифицированного актора (приходит от внешнего identity-сервиса)
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleTutor     Role = "TUTOR"
	RoleApplicant Role = "APPLICANT" // кандидат в репетиторы, записывается на интервью
	RoleAdmin     Role = "ADMIN"
	RoleSystem    Role = "SYSTEM" // фоновые задачи движка
)

// Valid проверяет, что роль известна
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleApplicant, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor тот, кто выполняет операцию
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// IsAdmin проверяет права администратора
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// SystemActor актор для переходов, инициированных планировщиком
var SystemActor = Actor{ID: uuid.Nil, Role: RoleSystem}
