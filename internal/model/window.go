package model

import "time"

// Производные состояния для UI. Не сохраняются и не используются для контроля доступа.

// IsStartingSoon до начала осталось не больше window (и начало ещё не наступило)
func IsStartingSoon(now, start time.Time, window time.Duration) bool {
	until := start.Sub(now)
	return until > 0 && until <= window
}

// IsInProgress now внутри [start, end]
func IsInProgress(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}

type DisplayState string

const (
	DisplayUpcoming     DisplayState = "upcoming"
	DisplayStartingSoon DisplayState = "starting_soon"
	DisplayInProgress   DisplayState = "in_progress"
	DisplayEnded        DisplayState = "ended"
	DisplayClosed       DisplayState = "closed" // отменено, завершено или неявка
)

// DisplayState вычисляет состояние занятия для отображения
func (s *Session) DisplayState(now time.Time, soonWindow time.Duration) DisplayState {
	if !s.IsActive() {
		return DisplayClosed
	}
	switch {
	case IsInProgress(now, s.StartTime, s.EndTime):
		return DisplayInProgress
	case IsStartingSoon(now, s.StartTime, soonWindow):
		return DisplayStartingSoon
	case now.After(s.EndTime):
		return DisplayEnded
	default:
		return DisplayUpcoming
	}
}
