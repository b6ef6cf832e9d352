package clock

import (
	"sync"
	"time"
)

// Clock единый источник времени для всех компонентов движка
type Clock interface {
	Now() time.Time
}

// Real возвращает текущее время в UTC
type Real struct{}

// Now возвращает текущее время
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake управляемые часы для тестов
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake создаёт часы, остановленные на now
func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

// Now возвращает текущее значение часов
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set переставляет часы
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now.UTC()
}

// Advance сдвигает часы вперёд на d
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

// Monotonic оборачивает Clock и никогда не отдаёт время раньше уже выданного.
// Используется планировщиком: снимок "now" для прохода sweep только растёт.
type Monotonic struct {
	mu   sync.Mutex
	src  Clock
	last time.Time
}

// NewMonotonic создаёт монотонную обёртку над src
func NewMonotonic(src Clock) *Monotonic {
	return &Monotonic{src: src}
}

// Now возвращает max(последнее выданное, src.Now())
func (m *Monotonic) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.src.Now()
	if now.Before(m.last) {
		return m.last
	}
	m.last = now
	return now
}
