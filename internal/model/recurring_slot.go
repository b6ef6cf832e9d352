package model

import (
	"time"

	"github.com/google/uuid"
)

// RecurringSlotTemplate шаблон еженедельного слота интервью.
// Генератор раскладывает активные шаблоны в конкретные InterviewSlot на несколько недель вперёд.
type RecurringSlotTemplate struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Weekday     int       `json:"weekday"`      // 0 = Sunday, 6 = Saturday
	StartHour   int       `json:"start_hour"`   // 0-23, UTC
	StartMinute int       `json:"start_minute"` // 0-59
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate проверяет диапазоны полей
func (t *RecurringSlotTemplate) Validate() bool {
	return t.Weekday >= 0 && t.Weekday <= 6 &&
		t.StartHour >= 0 && t.StartHour <= 23 &&
		t.StartMinute >= 0 && t.StartMinute <= 59
}

// OccurrencesBetween возвращает начала слотов шаблона в [from, to)
func (t *RecurringSlotTemplate) OccurrencesBetween(from, to time.Time) []time.Time {
	from, to = from.UTC(), to.UTC()
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	offset := (t.Weekday - int(day.Weekday()) + 7) % 7
	day = day.AddDate(0, 0, offset)

	var out []time.Time
	for ; day.Before(to); day = day.AddDate(0, 0, 7) {
		start := day.Add(time.Duration(t.StartHour)*time.Hour + time.Duration(t.StartMinute)*time.Minute)
		if start.Before(from) || !start.Before(to) {
			continue
		}
		out = append(out, start)
	}
	return out
}
