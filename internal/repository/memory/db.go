// Package memory хранилища в памяти. Используются в тестах и при STORAGE_DRIVER=memory.
// Семантика совпадает с PostgreSQL-реализацией: условные обновления по версии,
// запрет пересечения слотов, идемпотентные вставки.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// DB общее состояние всех хранилищ под одной блокировкой
type DB struct {
	mu sync.Mutex

	requests  map[uuid.UUID]model.Request
	slots     map[uuid.UUID]model.InterviewSlot
	proposals map[uuid.UUID]model.Proposal
	sessions  map[uuid.UUID]model.Session
	templates map[uuid.UUID]model.RecurringSlotTemplate
	contacts  map[uuid.UUID]model.Contact
	chats     map[uuid.UUID]model.Chat
	messages  []model.ChatMessage
	dedupe    map[string]struct{}
	outbox    map[uuid.UUID]model.OutboxEvent
}

func NewDB() *DB {
	return &DB{
		requests:  make(map[uuid.UUID]model.Request),
		slots:     make(map[uuid.UUID]model.InterviewSlot),
		proposals: make(map[uuid.UUID]model.Proposal),
		sessions:  make(map[uuid.UUID]model.Session),
		templates: make(map[uuid.UUID]model.RecurringSlotTemplate),
		contacts:  make(map[uuid.UUID]model.Contact),
		chats:     make(map[uuid.UUID]model.Chat),
		dedupe:    make(map[string]struct{}),
		outbox:    make(map[uuid.UUID]model.OutboxEvent),
	}
}

// sortedBy сортирует копии по ключу времени
func sortedBy[T any](items []T, key func(*T) time.Time, desc bool) []T {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(&items[i]), key(&items[j])
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	})
	return items
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
