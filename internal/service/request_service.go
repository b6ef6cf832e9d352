package service

import (
	"context"
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

// RequestService жизненный цикл запросов на пробное и платное занятие
type RequestService struct {
	requests RequestStore
	chats    ChatGateway
	clock    clock.Clock
	policy   model.Policy
	events   publisher
	logger   *zap.Logger
}

func NewRequestService(
	requests RequestStore,
	chats ChatGateway,
	relay Relay,
	clk clock.Clock,
	policy model.Policy,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		requests: requests,
		chats:    chats,
		clock:    clk,
		policy:   policy,
		events:   publisher{relay: relay, logger: logger},
		logger:   logger,
	}
}

// ============ Создание и чтение ============

// Create создаёт запрос студента
func (s *RequestService) Create(ctx context.Context, actor model.Actor, kind model.RequestKind, payload model.RequestPayload) (*model.Request, error) {
	if actor.Role != model.RoleStudent && !actor.IsAdmin() {
		return nil, errs.Unauthorized("only students can create requests")
	}
	if !kind.Valid() {
		return nil, errs.Validation(fmt.Sprintf("unknown request kind %q", kind))
	}

	payload.Subject = strings.TrimSpace(payload.Subject)
	payload.GradeLevel = strings.TrimSpace(payload.GradeLevel)
	payload.SchoolType = strings.TrimSpace(payload.SchoolType)

	switch {
	case payload.Subject == "":
		return nil, errs.MissingRequired("subject")
	case payload.GradeLevel == "":
		return nil, errs.MissingRequired("grade_level")
	case payload.SchoolType == "":
		return nil, errs.MissingRequired("school_type")
	}

	now := s.clock.Now()
	req := &model.Request{
		ID:            uuid.New(),
		RequesterID:   actor.ID,
		Kind:          kind,
		Subject:       payload.Subject,
		GradeLevel:    payload.GradeLevel,
		SchoolType:    payload.SchoolType,
		Description:   strings.TrimSpace(payload.Description),
		LearningGoals: strings.TrimSpace(payload.LearningGoals),
		Status:        model.RequestStatusPending,
		ExpiresAt:     now.Add(s.policy.RequestTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.logger.Info("Request created",
		zap.String("request_id", req.ID.String()),
		zap.String("requester_id", req.RequesterID.String()),
		zap.String("kind", string(req.Kind)),
		zap.Time("expires_at", req.ExpiresAt),
	)

	event := newEvent(model.EventRequestCreated, req.ID, actor, now, req.RequesterID)
	event.Payload["kind"] = req.Kind
	event.Payload["subject"] = req.Subject
	s.events.publish(ctx, event)

	return req, nil
}

// Get возвращает запрос по ID
func (s *RequestService) Get(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, errs.NotFound("request")
	}
	return req, nil
}

// ListMine запросы студента
func (s *RequestService) ListMine(ctx context.Context, actor model.Actor, filter model.ListFilter) ([]*model.Request, error) {
	return s.requests.ListByRequester(ctx, actor.ID, filter)
}

// ListOpen ожидающие запросы, которые репетитор может принять
func (s *RequestService) ListOpen(ctx context.Context, kind model.RequestKind, filter model.ListFilter) ([]*model.Request, error) {
	if kind != "" && !kind.Valid() {
		return nil, errs.Validation(fmt.Sprintf("unknown request kind %q", kind))
	}
	return s.requests.ListOpen(ctx, kind, s.clock.Now(), filter)
}

// ============ Переходы ============

// Accept репетитор принимает запрос; открывается чат со студентом
func (s *RequestService) Accept(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Request, error) {
	if actor.Role != model.RoleTutor {
		return nil, errs.Unauthorized("only tutors can accept requests")
	}

	var req *model.Request
	err := withConflictRetry(func() error {
		var err error
		req, err = s.Get(ctx, id)
		if err != nil {
			return err
		}

		if req.RequesterID == actor.ID {
			return errs.Unauthorized("requester cannot accept own request")
		}
		// Просрочен свипером или лениво: ответ тот же
		if req.Status == model.RequestStatusExpired {
			return errs.Expired("request")
		}
		if !req.IsPending() {
			return errs.InvalidTransition("request", string(req.Status), "accept")
		}

		now := s.clock.Now()
		if req.IsExpiredAt(now) {
			return s.expireLazily(ctx, req, now)
		}

		expected := req.Version
		req.Status = model.RequestStatusAccepted
		req.AcceptedByUserID = &actor.ID
		req.AcceptedAt = &now
		req.UpdatedAt = now
		return s.requests.Update(ctx, req, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request accepted",
		zap.String("request_id", req.ID.String()),
		zap.String("acceptor_id", actor.ID.String()),
	)

	// Чат открываем после коммита: сбой не отменяет принятие
	if err := s.attachChat(ctx, req); err != nil {
		s.logger.Warn("Chat creation failed, will retry out-of-band",
			zap.String("request_id", req.ID.String()),
			zap.Error(err),
		)
		pending := newEvent(model.EventRequestChatPending, req.ID, actor, s.clock.Now(), req.RequesterID, actor.ID)
		s.events.publish(ctx, pending)
	}

	event := newEvent(model.EventRequestAccepted, req.ID, actor, s.clock.Now(), req.RequesterID, actor.ID)
	event.ChatID = req.ChatID
	event.Payload["subject"] = req.Subject
	event.Payload["kind"] = req.Kind
	s.events.publish(ctx, event)

	return req, nil
}

// expireLazily переводит просроченный запрос в EXPIRED и возвращает EXPIRED вызывающему
func (s *RequestService) expireLazily(ctx context.Context, req *model.Request, now time.Time) error {
	expected := req.Version
	req.Status = model.RequestStatusExpired
	req.UpdatedAt = now
	if err := s.requests.Update(ctx, req, expected); err != nil {
		return err
	}

	s.events.publish(ctx, newEvent(model.EventRequestExpired, req.ID, model.SystemActor, now, req.RequesterID))
	return errs.Expired("request")
}

// attachChat создаёт чат пары и записывает его в запрос; идемпотентен
func (s *RequestService) attachChat(ctx context.Context, req *model.Request) error {
	if req.ChatID != nil || req.AcceptedByUserID == nil {
		return nil
	}

	chat, err := s.chats.CreateOrGet(ctx, req.RequesterID, *req.AcceptedByUserID)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}

	return withConflictRetry(func() error {
		if req.ChatID != nil {
			return nil
		}
		expected := req.Version
		req.ChatID = &chat.ID
		req.UpdatedAt = s.clock.Now()
		err := s.requests.Update(ctx, req, expected)
		if base.IsVersionConflict(err) {
			fresh, getErr := s.Get(ctx, req.ID)
			if getErr != nil {
				return getErr
			}
			*req = *fresh
		}
		return err
	})
}

// AttachPendingChat повторная попытка открыть чат для принятого запроса
func (s *RequestService) AttachPendingChat(ctx context.Context, requestID uuid.UUID) error {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != model.RequestStatusAccepted {
		return nil
	}
	if err := s.attachChat(ctx, req); err != nil {
		return err
	}

	s.logger.Info("Pending chat attached",
		zap.String("request_id", req.ID.String()),
		zap.Stringer("chat_id", req.ChatID),
	)
	return nil
}

// Cancel студент отзывает свой ожидающий запрос
func (s *RequestService) Cancel(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Request, error) {
	var req *model.Request
	err := withConflictRetry(func() error {
		var err error
		req, err = s.Get(ctx, id)
		if err != nil {
			return err
		}

		if req.RequesterID != actor.ID {
			return errs.Unauthorized("only the requester may cancel")
		}
		if !req.Status.CanTransitionTo(model.RequestStatusCancelled) {
			return errs.InvalidTransition("request", string(req.Status), "cancel")
		}

		now := s.clock.Now()
		expected := req.Version
		req.Status = model.RequestStatusCancelled
		req.CancelledAt = &now
		req.UpdatedAt = now
		return s.requests.Update(ctx, req, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request cancelled", zap.String("request_id", req.ID.String()))
	s.events.publish(ctx, newEvent(model.EventRequestCancelled, req.ID, actor, s.clock.Now(), req.RequesterID))

	return req, nil
}

// Extend продлевает запрос один раз, когда до истечения осталось не больше суток
func (s *RequestService) Extend(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Request, error) {
	var req *model.Request
	err := withConflictRetry(func() error {
		var err error
		req, err = s.Get(ctx, id)
		if err != nil {
			return err
		}

		if req.RequesterID != actor.ID {
			return errs.Unauthorized("only the requester may extend")
		}

		now := s.clock.Now()
		remaining := req.ExpiresAt.Sub(now)
		switch {
		case !req.IsPending():
			return errs.ExtensionNotAllowed(fmt.Sprintf("request is %s", req.Status))
		case req.ExtensionCount >= s.policy.MaxRequestExtensions:
			return errs.ExtensionNotAllowed("request was already extended")
		case remaining <= 0:
			return errs.ExtensionNotAllowed("request has already expired")
		case remaining > s.policy.RequestExtensionWindow:
			return errs.ExtensionNotAllowed("extension opens when one day or less remains")
		}

		expected := req.Version
		req.ExpiresAt = req.ExpiresAt.Add(s.policy.RequestExtension)
		req.ExtensionCount++
		req.UpdatedAt = now
		return s.requests.Update(ctx, req, expected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request extended",
		zap.String("request_id", req.ID.String()),
		zap.Time("expires_at", req.ExpiresAt),
	)

	event := newEvent(model.EventRequestExtended, req.ID, actor, s.clock.Now(), req.RequesterID)
	event.Payload["expires_at"] = req.ExpiresAt
	s.events.publish(ctx, event)

	return req, nil
}

// ============ Фоновые переходы ============

// SweepExpirations переводит просроченные ожидающие запросы в EXPIRED.
// Конфликт версий означает, что строку только что изменил живой запрос: такую строку пропускаем.
func (s *RequestService) SweepExpirations(ctx context.Context, now time.Time) ([]*model.Request, error) {
	candidates, err := s.requests.ListExpirable(ctx, now, s.policy.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list expirable requests: %w", err)
	}

	var expired []*model.Request
	for _, req := range candidates {
		if !req.IsPending() || !req.IsExpiredAt(now) {
			continue
		}

		expected := req.Version
		req.Status = model.RequestStatusExpired
		req.UpdatedAt = now
		if err := s.requests.Update(ctx, req, expected); err != nil {
			if base.IsVersionConflict(err) {
				s.logger.Debug("Request changed during sweep, skipping", zap.String("request_id", req.ID.String()))
				continue
			}
			return expired, fmt.Errorf("expire request %s: %w", req.ID, err)
		}

		expired = append(expired, req)
		s.events.publish(ctx, newEvent(model.EventRequestExpired, req.ID, model.SystemActor, now, req.RequesterID))
	}

	if len(expired) > 0 {
		s.logger.Info("Requests expired", zap.Int("count", len(expired)))
	}

	return expired, nil
}
