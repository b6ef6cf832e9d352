package model

import "time"

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ListFilter фильтр и пагинация для списков
type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Normalized подставляет лимиты по умолчанию
func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > MaxLimit {
		f.Limit = DefaultLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Contains проверяет попадание времени в диапазон [From, To)
func (f ListFilter) Contains(t time.Time) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && !t.Before(*f.To) {
		return false
	}
	return true
}

// Page отрезает страницу из уже отсортированного списка
func Page[T any](items []T, f ListFilter) []T {
	f = f.Normalized()
	if f.Offset >= len(items) {
		return []T{}
	}
	end := f.Offset + f.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[f.Offset:end]
}
