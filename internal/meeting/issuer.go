// Package meeting выдаёт токены входа в комнату видеозвонка занятия или интервью.
// Сам медиасервер внешний: он проверяет токен через Verify или тем же секретом.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

const tokenIssuer = "tutoring-scheduler"

// SessionSource занятия и отметка о начале
type SessionSource interface {
	GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	MarkStarted(ctx context.Context, id uuid.UUID) (*model.Session, error)
}

// SlotSource слоты интервью
type SlotSource interface {
	Get(ctx context.Context, id uuid.UUID) (*model.InterviewSlot, error)
}

// Config параметры выдачи токенов
type Config struct {
	Secret []byte
	TTL    time.Duration // срок жизни токена, но не дольше конца встречи

	// StartingSoonWindow за сколько до начала можно войти; то же окно, что и "скоро начнётся"
	StartingSoonWindow time.Duration
}

// Grant доступ к комнате встречи
type Grant struct {
	Channel   string    `json:"channel"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims содержимое токена
type Claims struct {
	jwt.RegisteredClaims
	Channel string     `json:"channel"`
	Role    model.Role `json:"role"`
}

type Issuer struct {
	sessions SessionSource
	slots    SlotSource
	clock    clock.Clock
	cfg      Config
	logger   *zap.Logger
}

func NewIssuer(sessions SessionSource, slots SlotSource, clk clock.Clock, cfg Config, logger *zap.Logger) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.StartingSoonWindow <= 0 {
		cfg.StartingSoonWindow = model.DefaultPolicy().StartingSoonWindow
	}
	return &Issuer{
		sessions: sessions,
		slots:    slots,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// SessionChannel имя комнаты занятия
func SessionChannel(id uuid.UUID) string {
	return "session:" + id.String()
}

// InterviewChannel имя комнаты интервью
func InterviewChannel(id uuid.UUID) string {
	return "interview:" + id.String()
}

// IssueSessionToken токен входа в занятие. Вход после начала переводит занятие в IN_PROGRESS.
func (i *Issuer) IssueSessionToken(ctx context.Context, sessionID uuid.UUID, actor model.Actor) (*Grant, error) {
	session, err := i.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.IsParty(actor.ID) && !actor.IsAdmin() {
		return nil, errs.Unauthorized("only session participants can join")
	}
	if !session.IsActive() {
		return nil, errs.InvalidTransition("session", string(session.Status), "join")
	}

	now := i.clock.Now()
	if err := i.checkWindow("session", now, session.StartTime, session.EndTime); err != nil {
		return nil, err
	}

	if !now.Before(session.StartTime) && session.Status == model.SessionStatusScheduled {
		if _, err := i.sessions.MarkStarted(ctx, session.ID); err != nil {
			// Вход важнее статуса: свип всё равно завершит занятие по времени
			i.logger.Warn("Failed to mark session as started",
				zap.String("session_id", session.ID.String()),
				zap.Error(err),
			)
		}
	}

	return i.sign(SessionChannel(session.ID), actor, now, session.EndTime)
}

// IssueInterviewToken токен входа в интервью для владельца слота или записавшегося кандидата
func (i *Issuer) IssueInterviewToken(ctx context.Context, slotID uuid.UUID, actor model.Actor) (*Grant, error) {
	slot, err := i.slots.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}

	if !slot.IsParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, errs.Unauthorized("only interview participants can join")
	}
	if slot.Status != model.SlotStatusBooked {
		return nil, errs.InvalidTransition("slot", string(slot.Status), "join")
	}

	now := i.clock.Now()
	if err := i.checkWindow("interview", now, slot.StartTime, slot.EndTime); err != nil {
		return nil, err
	}

	return i.sign(InterviewChannel(slot.ID), actor, now, slot.EndTime)
}

// checkWindow вход разрешён в [start - StartingSoonWindow, end]
func (i *Issuer) checkWindow(entity string, now, start, end time.Time) error {
	if now.Before(start) && !model.IsStartingSoon(now, start, i.cfg.StartingSoonWindow) {
		return errs.New(errs.CodeInvalidTransition, entity+" has not opened for joining yet")
	}
	if now.After(end) {
		return errs.Expired(entity)
	}
	return nil
}

func (i *Issuer) sign(channel string, actor model.Actor, now, end time.Time) (*Grant, error) {
	expiresAt := now.Add(i.cfg.TTL)
	if end.Before(expiresAt) {
		expiresAt = end
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   actor.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Channel: channel,
		Role:    actor.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return nil, errs.Internal("failed to sign meeting token", err)
	}

	i.logger.Info("Meeting token issued",
		zap.String("channel", channel),
		zap.String("actor_id", actor.ID.String()),
		zap.Time("expires_at", expiresAt),
	)

	return &Grant{Channel: channel, Token: token, ExpiresAt: expiresAt}, nil
}

// Verify проверяет подпись и срок токена
func (i *Issuer) Verify(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.Expired("meeting token")
		}
		return nil, errs.Unauthorized(fmt.Sprintf("invalid meeting token: %v", err))
	}
	return &claims, nil
}
