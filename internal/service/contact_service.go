package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// ContactInput данные канала уведомлений, которые присылает пользователь
type ContactInput struct {
	TelegramID   *int64 `json:"telegram_id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
}

type ContactService struct {
	contacts ContactStore
	clock    clock.Clock
	logger   *zap.Logger
}

func NewContactService(contacts ContactStore, clk clock.Clock, logger *zap.Logger) *ContactService {
	return &ContactService{
		contacts: contacts,
		clock:    clk,
		logger:   logger,
	}
}

// Register регистрирует или обновляет контакт актора
func (s *ContactService) Register(ctx context.Context, actor model.Actor, in ContactInput) (*model.Contact, error) {
	if actor.ID == uuid.Nil {
		return nil, errs.MissingRequired("actor id")
	}
	if in.TelegramID != nil && *in.TelegramID == 0 {
		return nil, errs.Validation("telegram_id must be non-zero")
	}

	contact := &model.Contact{
		UserID:       actor.ID,
		TelegramID:   in.TelegramID,
		Username:     strings.TrimPrefix(strings.TrimSpace(in.Username), "@"),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		LanguageCode: in.LanguageCode,
		UpdatedAt:    s.clock.Now(),
	}

	if err := s.contacts.Upsert(ctx, contact); err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}

	s.logger.Info("Contact registered",
		zap.String("user_id", contact.UserID.String()),
		zap.String("username", contact.Username),
		zap.Bool("telegram", contact.TelegramID != nil),
	)

	return contact, nil
}

// Get контакт пользователя
func (s *ContactService) Get(ctx context.Context, userID uuid.UUID) (*model.Contact, error) {
	contact, err := s.contacts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	if contact == nil {
		return nil, errs.NotFound("contact")
	}
	return contact, nil
}

// GetByTelegramID контакт, привязанный к Telegram-аккаунту
func (s *ContactService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Contact, error) {
	contact, err := s.contacts.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get contact by telegram id: %w", err)
	}
	if contact == nil {
		return nil, errs.NotFound("contact")
	}
	return contact, nil
}

// SetMuted включает или выключает внешние уведомления
func (s *ContactService) SetMuted(ctx context.Context, actor model.Actor, muted bool) error {
	if _, err := s.Get(ctx, actor.ID); err != nil {
		return err
	}
	if err := s.contacts.SetMuted(ctx, actor.ID, muted); err != nil {
		return fmt.Errorf("set muted: %w", err)
	}

	s.logger.Info("Contact notifications toggled",
		zap.String("user_id", actor.ID.String()),
		zap.Bool("muted", muted),
	)
	return nil
}
