package model

import "time"

// Policy константы движка. Значения по умолчанию совпадают с продуктовыми правилами,
// переопределяются конфигом.
type Policy struct {
	RequestTTL             time.Duration // срок жизни запроса
	RequestExtension       time.Duration // на сколько продлевается запрос
	RequestExtensionWindow time.Duration // продление доступно, когда осталось не больше
	MaxRequestExtensions   int

	SlotDuration           time.Duration // длительность интервью
	SlotCancellationCutoff time.Duration // отмена забронированного слота не позже чем за

	ProposalTTL          time.Duration // время на ответ по предложению
	MaxNegotiationRounds int           // максимум предложений в цепочке встречных

	StartingSoonWindow time.Duration
	SweepBatchSize     int
}

// DefaultPolicy значения по умолчанию
func DefaultPolicy() Policy {
	return Policy{
		RequestTTL:             7 * 24 * time.Hour,
		RequestExtension:       7 * 24 * time.Hour,
		RequestExtensionWindow: 24 * time.Hour,
		MaxRequestExtensions:   1,
		SlotDuration:           time.Hour,
		SlotCancellationCutoff: time.Hour,
		ProposalTTL:            24 * time.Hour,
		MaxNegotiationRounds:   3,
		StartingSoonWindow:     15 * time.Minute,
		SweepBatchSize:         200,
	}
}
