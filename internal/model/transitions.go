package model

// Таблицы переходов для каждой сущности. Любая запись статуса проходит через
// CanTransitionTo; у терминальных статусов нет исходящих рёбер.

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:   {RequestStatusAccepted, RequestStatusExpired, RequestStatusCancelled},
	RequestStatusAccepted:  nil,
	RequestStatusExpired:   nil,
	RequestStatusCancelled: nil,
}

var slotTransitions = map[SlotStatus][]SlotStatus{
	SlotStatusAvailable: {SlotStatusBooked, SlotStatusCancelled},
	SlotStatusBooked:    {SlotStatusCompleted, SlotStatusCancelled},
	SlotStatusCompleted: nil,
	SlotStatusCancelled: nil,
}

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalStatusProposed: {
		ProposalStatusAccepted,
		ProposalStatusRejected,
		ProposalStatusCounterProposed,
		ProposalStatusExpired,
		ProposalStatusCancelled,
	},
	ProposalStatusAccepted:        {ProposalStatusCancelled, ProposalStatusCompleted},
	ProposalStatusRejected:        nil,
	ProposalStatusCounterProposed: nil,
	ProposalStatusExpired:         nil,
	ProposalStatusCancelled:       nil,
	ProposalStatusCompleted:       nil,
}

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusScheduled: {
		SessionStatusInProgress,
		SessionStatusCompleted,
		SessionStatusCancelled,
		SessionStatusNoShow,
	},
	SessionStatusInProgress: {SessionStatusCompleted, SessionStatusNoShow},
	SessionStatusCompleted:  nil,
	SessionStatusCancelled:  nil,
	SessionStatusNoShow:     nil,
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

func known[S comparable](table map[S][]S, s S) bool {
	_, ok := table[s]
	return ok
}

// CanTransitionTo проверяет переход запроса
func (s RequestStatus) CanTransitionTo(to RequestStatus) bool {
	return allowed(requestTransitions, s, to)
}

// IsTerminal у статуса нет исходящих переходов
func (s RequestStatus) IsTerminal() bool {
	return len(requestTransitions[s]) == 0
}

func (s RequestStatus) Valid() bool { return known(requestTransitions, s) }

// CanTransitionTo проверяет переход слота
func (s SlotStatus) CanTransitionTo(to SlotStatus) bool {
	return allowed(slotTransitions, s, to)
}

func (s SlotStatus) IsTerminal() bool {
	return len(slotTransitions[s]) == 0
}

func (s SlotStatus) Valid() bool { return known(slotTransitions, s) }

// CanTransitionTo проверяет переход предложения
func (s ProposalStatus) CanTransitionTo(to ProposalStatus) bool {
	return allowed(proposalTransitions, s, to)
}

func (s ProposalStatus) IsTerminal() bool {
	return len(proposalTransitions[s]) == 0
}

func (s ProposalStatus) Valid() bool { return known(proposalTransitions, s) }

// CanTransitionTo проверяет переход занятия
func (s SessionStatus) CanTransitionTo(to SessionStatus) bool {
	return allowed(sessionTransitions, s, to)
}

func (s SessionStatus) IsTerminal() bool {
	return len(sessionTransitions[s]) == 0
}

func (s SessionStatus) Valid() bool { return known(sessionTransitions, s) }
