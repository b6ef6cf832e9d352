package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

// ProposalService переговоры о времени занятия в чате и занятия, которые из них получаются
type ProposalService struct {
	proposals ProposalStore
	sessions  SessionStore
	chats     ChatGateway
	clock     clock.Clock
	policy    model.Policy
	events    publisher
	logger    *zap.Logger
}

func NewProposalService(
	proposals ProposalStore,
	sessions SessionStore,
	chats ChatGateway,
	relay Relay,
	clk clock.Clock,
	policy model.Policy,
	logger *zap.Logger,
) *ProposalService {
	return &ProposalService{
		proposals: proposals,
		sessions:  sessions,
		chats:     chats,
		clock:     clk,
		policy:    policy,
		events:    publisher{relay: relay, logger: logger},
		logger:    logger,
	}
}

// ============ Чтение ============

// Get возвращает предложение по ID
func (s *ProposalService) Get(ctx context.Context, id uuid.UUID) (*model.Proposal, error) {
	p, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	if p == nil {
		return nil, errs.NotFound("proposal")
	}
	return p, nil
}

// GetSession возвращает занятие по ID
func (s *ProposalService) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, errs.NotFound("session")
	}
	return session, nil
}

// ListForChat история переговоров в чате; видна участникам и админам
func (s *ProposalService) ListForChat(ctx context.Context, chatID uuid.UUID, actor model.Actor, filter model.ListFilter) ([]*model.Proposal, error) {
	if _, err := s.chatFor(ctx, chatID, actor); err != nil {
		return nil, err
	}
	return s.proposals.ListByChat(ctx, chatID, filter)
}

// ListSessionsForUser занятия актора
func (s *ProposalService) ListSessionsForUser(ctx context.Context, actor model.Actor, filter model.ListFilter) ([]*model.Session, error) {
	return s.sessions.ListByUser(ctx, actor.ID, filter)
}

func (s *ProposalService) chatFor(ctx context.Context, chatID uuid.UUID, actor model.Actor) (*model.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, errs.NotFound("chat")
	}
	if !chat.IsParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, errs.Unauthorized("not a participant of this chat")
	}
	return chat, nil
}

func (s *ProposalService) validateTimes(start, end, now time.Time) error {
	if !start.After(now) {
		return errs.Validation("session start must be in the future")
	}
	if !end.After(start) {
		return errs.Validation("session end must be after start")
	}
	return nil
}

// expiresAt срок ответа: TTL, но не позже начала занятия
func (s *ProposalService) expiresAt(now, start time.Time) time.Time {
	deadline := now.Add(s.policy.ProposalTTL)
	if start.Before(deadline) {
		return start
	}
	return deadline
}

// ============ Переговоры ============

// Propose репетитор предлагает время занятия собеседнику по чату
func (s *ProposalService) Propose(ctx context.Context, chatID uuid.UUID, actor model.Actor, subject string, start, end time.Time) (*model.Proposal, error) {
	if actor.Role != model.RoleTutor {
		return nil, errs.Unauthorized("only tutors can propose sessions")
	}

	chat, err := s.chatFor(ctx, chatID, actor)
	if err != nil {
		return nil, err
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errs.MissingRequired("subject")
	}

	now := s.clock.Now()
	start, end = start.UTC(), end.UTC()
	if err := s.validateTimes(start, end, now); err != nil {
		return nil, err
	}

	p := &model.Proposal{
		ID:            uuid.New(),
		ChatID:        chat.ID,
		ProposerID:    actor.ID,
		CounterpartID: chat.Other(actor.ID),
		TutorID:       actor.ID,
		Subject:       subject,
		StartTime:     start,
		EndTime:       end,
		Status:        model.ProposalStatusProposed,
		ExpiresAt:     s.expiresAt(now, start),
		Round:         1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.proposals.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	s.logger.Info("Session proposed",
		zap.String("proposal_id", p.ID.String()),
		zap.String("chat_id", p.ChatID.String()),
		zap.Time("start_time", p.StartTime),
	)
	s.publishProposal(ctx, model.EventProposalCreated, p, actor)

	return p, nil
}

// respond общая часть accept/reject/counter: только собеседник, только PROPOSED, срок не истёк
func (s *ProposalService) respond(ctx context.Context, id uuid.UUID, actor model.Actor, op string, apply func(p *model.Proposal, now time.Time) error) (*model.Proposal, error) {
	var p *model.Proposal
	err := withConflictRetry(func() error {
		var err error
		p, err = s.Get(ctx, id)
		if err != nil {
			return err
		}

		if actor.ID != p.CounterpartID {
			return errs.Unauthorized(fmt.Sprintf("only the counterpart may %s a proposal", op))
		}
		if p.Status == model.ProposalStatusExpired {
			return errs.Expired("proposal")
		}
		if p.Status != model.ProposalStatusProposed {
			return errs.InvalidTransition("proposal", string(p.Status), op)
		}

		now := s.clock.Now()
		if !now.Before(p.ExpiresAt) {
			return s.expireLazily(ctx, p, now)
		}

		return apply(p, now)
	})
	return p, err
}

func (s *ProposalService) expireLazily(ctx context.Context, p *model.Proposal, now time.Time) error {
	expected := p.Version
	p.Status = model.ProposalStatusExpired
	p.UpdatedAt = now
	if err := s.proposals.Update(ctx, p, expected); err != nil {
		return err
	}

	s.publishProposal(ctx, model.EventProposalExpired, p, model.SystemActor)
	return errs.Expired("proposal")
}

// Accept собеседник принимает предложение; создаётся занятие.
// ID занятия выдаётся внутри той же условной записи, поэтому запись занятия можно
// повторить идемпотентно, если она не удалась.
func (s *ProposalService) Accept(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Proposal, error) {
	p, err := s.respond(ctx, id, actor, "accept", func(p *model.Proposal, now time.Time) error {
		expected := p.Version
		sessionID := uuid.New()
		p.Status = model.ProposalStatusAccepted
		p.SessionID = &sessionID
		p.RespondedAt = &now
		p.UpdatedAt = now
		return s.proposals.Update(ctx, p, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Proposal accepted",
		zap.String("proposal_id", p.ID.String()),
		zap.String("session_id", p.SessionID.String()),
	)

	if _, err := s.materializeSession(ctx, p); err != nil {
		s.logger.Error("Failed to create session, sweep will repair",
			zap.String("proposal_id", p.ID.String()),
			zap.Error(err),
		)
	}

	s.publishProposal(ctx, model.EventProposalAccepted, p, actor)
	return p, nil
}

func (s *ProposalService) materializeSession(ctx context.Context, p *model.Proposal) (*model.Session, error) {
	session := model.NewSessionFromProposal(p, s.clock.Now())
	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if created {
		s.logger.Info("Session scheduled",
			zap.String("session_id", session.ID.String()),
			zap.String("student_id", session.StudentID.String()),
			zap.String("tutor_id", session.TutorID.String()),
			zap.Time("start_time", session.StartTime),
		)
	}
	return session, nil
}

// Reject собеседник отклоняет предложение
func (s *ProposalService) Reject(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Proposal, error) {
	p, err := s.respond(ctx, id, actor, "reject", func(p *model.Proposal, now time.Time) error {
		expected := p.Version
		p.Status = model.ProposalStatusRejected
		p.RespondedAt = &now
		p.UpdatedAt = now
		return s.proposals.Update(ctx, p, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Proposal rejected", zap.String("proposal_id", p.ID.String()))
	s.publishProposal(ctx, model.EventProposalRejected, p, actor)
	return p, nil
}

// CounterPropose собеседник предлагает другое время. Исходное предложение закрывается,
// создаётся новое с поменявшимися ролями. Длина цепочки ограничена MaxNegotiationRounds.
func (s *ProposalService) CounterPropose(ctx context.Context, id uuid.UUID, actor model.Actor, start, end time.Time) (*model.Proposal, error) {
	start, end = start.UTC(), end.UTC()

	var counter *model.Proposal
	original, err := s.respond(ctx, id, actor, "counter-propose", func(p *model.Proposal, now time.Time) error {
		if p.Round >= s.policy.MaxNegotiationRounds {
			return errs.New(errs.CodeInvalidTransition,
				fmt.Sprintf("negotiation limit of %d proposals reached", s.policy.MaxNegotiationRounds))
		}
		if err := s.validateTimes(start, end, now); err != nil {
			return err
		}

		parentID := p.ID
		counter = &model.Proposal{
			ID:            uuid.New(),
			ChatID:        p.ChatID,
			ProposerID:    actor.ID,
			CounterpartID: p.ProposerID,
			TutorID:       p.TutorID,
			Subject:       p.Subject,
			StartTime:     start,
			EndTime:       end,
			Status:        model.ProposalStatusProposed,
			ExpiresAt:     s.expiresAt(now, start),
			ParentID:      &parentID,
			Round:         p.Round + 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		expected := p.Version
		p.Status = model.ProposalStatusCounterProposed
		p.RespondedAt = &now
		p.UpdatedAt = now
		return s.proposals.CounterPropose(ctx, p, expected, counter)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Counter proposal created",
		zap.String("original_id", original.ID.String()),
		zap.String("proposal_id", counter.ID.String()),
		zap.Int("round", counter.Round),
	)

	event := s.proposalEvent(model.EventProposalCounterProposed, counter, actor)
	event.Payload["parent_id"] = original.ID.String()
	s.events.publish(ctx, event)

	return counter, nil
}

// CancelProposal отменяет предложение. Ожидающее может отозвать только автор;
// принятое любая сторона (или админ) до начала занятия, вместе с занятием.
func (s *ProposalService) CancelProposal(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (*model.Proposal, error) {
	reason = strings.TrimSpace(reason)

	var p *model.Proposal
	err := withConflictRetry(func() error {
		var err error
		p, err = s.Get(ctx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		switch p.Status {
		case model.ProposalStatusProposed:
			if actor.ID != p.ProposerID {
				return errs.Unauthorized("only the proposer may withdraw a pending proposal")
			}
		case model.ProposalStatusAccepted:
			if !p.IsParty(actor.ID) && !actor.IsAdmin() {
				return errs.Unauthorized("only session participants can cancel")
			}
			if !now.Before(p.StartTime) {
				return errs.CancellationWindowClosed("session has already started")
			}
		default:
			return errs.InvalidTransition("proposal", string(p.Status), "cancel")
		}

		expected := p.Version
		p.Status = model.ProposalStatusCancelled
		p.CancellationReason = reason
		p.UpdatedAt = now
		return s.proposals.Update(ctx, p, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Proposal cancelled",
		zap.String("proposal_id", p.ID.String()),
		zap.String("by", actor.ID.String()),
	)

	if p.SessionID != nil {
		s.cascadeSession(ctx, *p.SessionID, actor, func(session *model.Session) bool {
			if !session.Status.CanTransitionTo(model.SessionStatusCancelled) {
				return false
			}
			session.Status = model.SessionStatusCancelled
			session.CancelledBy = &actor.ID
			session.CancellationReason = reason
			return true
		})
	}

	event := s.proposalEvent(model.EventProposalCancelled, p, actor)
	event.Payload["reason"] = reason
	s.events.publish(ctx, event)

	return p, nil
}

// ============ Занятия ============

// updateSession перечитывает занятие и применяет к нему переход с повтором при конфликте версий
func (s *ProposalService) updateSession(ctx context.Context, id uuid.UUID, apply func(session *model.Session, now time.Time) error) (*model.Session, error) {
	var session *model.Session
	err := withConflictRetry(func() error {
		var err error
		session, err = s.GetSession(ctx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		expected := session.Version
		if err := apply(session, now); err != nil {
			return err
		}
		session.UpdatedAt = now
		return s.sessions.Update(ctx, session, expected)
	})
	return session, err
}

// CancelSession любая сторона (или админ) отменяет занятие до его начала
func (s *ProposalService) CancelSession(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (*model.Session, error) {
	reason = strings.TrimSpace(reason)

	session, err := s.updateSession(ctx, id, func(session *model.Session, now time.Time) error {
		if !session.IsParty(actor.ID) && !actor.IsAdmin() {
			return errs.Unauthorized("only session participants can cancel")
		}
		if session.Status != model.SessionStatusScheduled {
			return errs.InvalidTransition("session", string(session.Status), "cancel")
		}
		if !now.Before(session.StartTime) {
			return errs.CancellationWindowClosed("session has already started")
		}

		session.Status = model.SessionStatusCancelled
		session.CancelledBy = &actor.ID
		session.CancellationReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session cancelled",
		zap.String("session_id", session.ID.String()),
		zap.String("by", actor.ID.String()),
	)

	s.cascadeProposal(ctx, session.ProposalID, model.ProposalStatusCancelled, reason)

	event := s.sessionEvent(model.EventSessionCancelled, session, actor)
	event.Payload["reason"] = reason
	s.events.publish(ctx, event)

	return session, nil
}

// CompleteSession завершает прошедшее занятие и открывает отзыв
func (s *ProposalService) CompleteSession(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Session, error) {
	session, err := s.updateSession(ctx, id, func(session *model.Session, now time.Time) error {
		if actor.ID != session.TutorID && !actor.IsAdmin() && actor.Role != model.RoleSystem {
			return errs.Unauthorized("only the tutor can complete a session")
		}
		return s.complete(session, now)
	})
	if err != nil {
		return nil, err
	}

	s.afterComplete(ctx, session, actor)
	return session, nil
}

func (s *ProposalService) complete(session *model.Session, now time.Time) error {
	if !session.Status.CanTransitionTo(model.SessionStatusCompleted) {
		return errs.InvalidTransition("session", string(session.Status), "complete")
	}
	if !now.After(session.EndTime) {
		return errs.InvalidTransition("session", "not finished", "complete")
	}

	session.Status = model.SessionStatusCompleted
	session.ReviewStatus = model.ReviewStatusPending
	return nil
}

func (s *ProposalService) afterComplete(ctx context.Context, session *model.Session, actor model.Actor) {
	s.logger.Info("Session completed", zap.String("session_id", session.ID.String()))
	s.cascadeProposal(ctx, session.ProposalID, model.ProposalStatusCompleted, "")
	s.events.publish(ctx, s.sessionEvent(model.EventSessionCompleted, session, actor))
}

// MarkNoShow репетитор отмечает, что студент не пришёл
func (s *ProposalService) MarkNoShow(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Session, error) {
	session, err := s.updateSession(ctx, id, func(session *model.Session, now time.Time) error {
		if actor.ID != session.TutorID && !actor.IsAdmin() {
			return errs.Unauthorized("only the tutor can mark a no-show")
		}
		if !session.Status.CanTransitionTo(model.SessionStatusNoShow) {
			return errs.InvalidTransition("session", string(session.Status), "mark no-show")
		}
		if !now.After(session.StartTime) {
			return errs.InvalidTransition("session", "not started", "mark no-show")
		}

		session.Status = model.SessionStatusNoShow
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session marked as no-show", zap.String("session_id", session.ID.String()))
	s.events.publish(ctx, s.sessionEvent(model.EventSessionNoShow, session, actor))
	return session, nil
}

// SubmitReview студент оставляет отзыв о завершённом занятии
func (s *ProposalService) SubmitReview(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Session, error) {
	return s.updateSession(ctx, id, func(session *model.Session, _ time.Time) error {
		if actor.ID != session.StudentID {
			return errs.Unauthorized("only the student can review a session")
		}
		if session.Status != model.SessionStatusCompleted || session.ReviewStatus != model.ReviewStatusPending {
			return errs.InvalidTransition("review", string(session.ReviewStatus), "submit")
		}

		session.ReviewStatus = model.ReviewStatusSubmitted
		return nil
	})
}

// MarkStarted переводит занятие в IN_PROGRESS, когда кто-то подключается после начала
func (s *ProposalService) MarkStarted(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusInProgress || s.clock.Now().Before(session.StartTime) {
		return session, nil
	}

	return s.updateSession(ctx, id, func(session *model.Session, now time.Time) error {
		if session.Status == model.SessionStatusInProgress {
			return nil
		}
		if !session.Status.CanTransitionTo(model.SessionStatusInProgress) {
			return errs.InvalidTransition("session", string(session.Status), "start")
		}
		session.Status = model.SessionStatusInProgress
		return nil
	})
}

// cascadeSession переход связанного занятия после перехода предложения. Отдельная запись:
// сбой логируется, предложение остаётся в новом статусе.
func (s *ProposalService) cascadeSession(ctx context.Context, sessionID uuid.UUID, actor model.Actor, apply func(session *model.Session) bool) {
	_, err := s.updateSession(ctx, sessionID, func(session *model.Session, _ time.Time) error {
		if !apply(session) {
			return errNoChange
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		s.logger.Error("Failed to update linked session",
			zap.String("session_id", sessionID.String()),
			zap.String("actor_id", actor.ID.String()),
			zap.Error(err),
		)
	}
}

// cascadeProposal закрывает принятое предложение после перехода занятия
func (s *ProposalService) cascadeProposal(ctx context.Context, proposalID uuid.UUID, to model.ProposalStatus, reason string) {
	err := withConflictRetry(func() error {
		p, err := s.Get(ctx, proposalID)
		if err != nil {
			return err
		}
		if !p.Status.CanTransitionTo(to) {
			return nil
		}

		expected := p.Version
		p.Status = to
		p.CancellationReason = reason
		p.UpdatedAt = s.clock.Now()
		return s.proposals.Update(ctx, p, expected)
	})
	if err != nil {
		s.logger.Error("Failed to update linked proposal",
			zap.String("proposal_id", proposalID.String()),
			zap.String("to", string(to)),
			zap.Error(err),
		)
	}
}

var errNoChange = errors.New("no change")

// ============ Фоновые переходы ============

// SweepExpirations переводит предложения без ответа в EXPIRED; конфликты пропускаются
func (s *ProposalService) SweepExpirations(ctx context.Context, now time.Time) ([]*model.Proposal, error) {
	candidates, err := s.proposals.ListExpirable(ctx, now, s.policy.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list expirable proposals: %w", err)
	}

	var expired []*model.Proposal
	for _, p := range candidates {
		if p.Status != model.ProposalStatusProposed || now.Before(p.ExpiresAt) {
			continue
		}

		expected := p.Version
		p.Status = model.ProposalStatusExpired
		p.UpdatedAt = now
		if err := s.proposals.Update(ctx, p, expected); err != nil {
			if base.IsVersionConflict(err) {
				s.logger.Debug("Proposal changed during sweep, skipping", zap.String("proposal_id", p.ID.String()))
				continue
			}
			return expired, fmt.Errorf("expire proposal %s: %w", p.ID, err)
		}

		expired = append(expired, p)
		s.publishProposal(ctx, model.EventProposalExpired, p, model.SystemActor)
	}

	if len(expired) > 0 {
		s.logger.Info("Proposals expired", zap.Int("count", len(expired)))
	}

	return expired, nil
}

// SweepSessions автоматически завершает занятия, время которых вышло
func (s *ProposalService) SweepSessions(ctx context.Context, now time.Time) ([]*model.Session, error) {
	candidates, err := s.sessions.ListEnded(ctx, now, s.policy.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list ended sessions: %w", err)
	}

	var completed []*model.Session
	for _, session := range candidates {
		expected := session.Version
		if err := s.complete(session, now); err != nil {
			continue
		}
		session.UpdatedAt = now
		if err := s.sessions.Update(ctx, session, expected); err != nil {
			if base.IsVersionConflict(err) {
				continue
			}
			return completed, fmt.Errorf("complete session %s: %w", session.ID, err)
		}

		completed = append(completed, session)
		s.afterComplete(ctx, session, model.SystemActor)
	}

	return completed, nil
}

// RepairMissingSessions дозаписывает занятия для принятых предложений, у которых запись не удалась
func (s *ProposalService) RepairMissingSessions(ctx context.Context) (int, error) {
	proposals, err := s.proposals.ListAcceptedWithoutSession(ctx, s.policy.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list accepted proposals without session: %w", err)
	}

	repaired := 0
	for _, p := range proposals {
		if _, err := s.materializeSession(ctx, p); err != nil {
			s.logger.Warn("Session repair failed",
				zap.String("proposal_id", p.ID.String()),
				zap.Error(err),
			)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		s.logger.Info("Missing sessions repaired", zap.Int("count", repaired))
	}

	return repaired, nil
}

// ============ События ============

func (s *ProposalService) proposalEvent(typ model.EventType, p *model.Proposal, actor model.Actor) model.Event {
	event := newEvent(typ, p.ID, actor, s.clock.Now(), p.ProposerID, p.CounterpartID)
	chatID := p.ChatID
	event.ChatID = &chatID
	event.Payload["proposal_id"] = p.ID.String()
	event.Payload["subject"] = p.Subject
	event.Payload["start_time"] = p.StartTime
	event.Payload["end_time"] = p.EndTime
	event.Payload["expires_at"] = p.ExpiresAt
	event.Payload["status"] = p.Status
	event.Payload["round"] = p.Round
	if p.SessionID != nil {
		event.Payload["session_id"] = p.SessionID.String()
	}
	return event
}

func (s *ProposalService) publishProposal(ctx context.Context, typ model.EventType, p *model.Proposal, actor model.Actor) {
	s.events.publish(ctx, s.proposalEvent(typ, p, actor))
}

func (s *ProposalService) sessionEvent(typ model.EventType, session *model.Session, actor model.Actor) model.Event {
	event := newEvent(typ, session.ID, actor, s.clock.Now(), session.StudentID, session.TutorID)
	chatID := session.ChatID
	event.ChatID = &chatID
	event.Payload["session_id"] = session.ID.String()
	event.Payload["subject"] = session.Subject
	event.Payload["start_time"] = session.StartTime
	event.Payload["end_time"] = session.EndTime
	event.Payload["status"] = session.Status
	return event
}
