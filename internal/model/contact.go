package model

import (
	"time"

	"github.com/google/uuid"
)

// Contact каналы доставки уведомлений пользователю
type Contact struct {
	UserID       uuid.UUID `json:"user_id"`
	TelegramID   *int64    `json:"telegram_id,omitempty"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	LanguageCode string    `json:"language_code"`
	Muted        bool      `json:"muted"` // не слать внешние уведомления
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName имя для текстов уведомлений
func (c *Contact) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.Username != "":
		return "@" + c.Username
	default:
		return "пользователь"
	}
}

// CanReceiveTelegram есть ли куда слать сообщение в Telegram
func (c *Contact) CanReceiveTelegram() bool {
	return c != nil && !c.Muted && c.TelegramID != nil
}
