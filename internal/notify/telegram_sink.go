package notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// MessageSender часть API бота, которой пользуется приёмник; *bot.Bot её реализует
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// ContactLookup поиск Telegram-контакта пользователя
type ContactLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Contact, error)
}

// TelegramSink отправляет уведомления получателям события в Telegram
type TelegramSink struct {
	bot       MessageSender
	contacts  ContactLookup
	formatter Formatter
	logger    *zap.Logger
}

func NewTelegramSink(sender MessageSender, contacts ContactLookup, formatter Formatter, logger *zap.Logger) *TelegramSink {
	return &TelegramSink{
		bot:       sender,
		contacts:  contacts,
		formatter: formatter,
		logger:    logger,
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Deliver(ctx context.Context, event model.Event) error {
	msg := s.formatter.Format(event)
	if msg.Title == "" {
		return nil
	}

	text := "<b>" + html.EscapeString(msg.Title) + "</b>"
	if msg.Body != "" {
		text += "\n\n" + html.EscapeString(msg.Body)
	}

	var errs []error
	for _, userID := range event.Recipients {
		// Инициатор и так знает о своём действии
		if event.ActorID != nil && *event.ActorID == userID {
			continue
		}

		contact, err := s.contacts.GetByUserID(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("get contact %s: %w", userID, err))
			continue
		}
		if !contact.CanReceiveTelegram() {
			continue
		}

		_, err = s.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    *contact.TelegramID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			// Пользователь заблокировал бота или чат не существует: повтор не поможет
			if errors.Is(err, bot.ErrorForbidden) || errors.Is(err, bot.ErrorBadRequest) {
				s.logger.Warn("Telegram rejected notification",
					zap.String("user_id", userID.String()),
					zap.String("event_type", string(event.Type)),
					zap.Error(err),
				)
				continue
			}
			errs = append(errs, fmt.Errorf("send to %s: %w", userID, err))
			continue
		}

		s.logger.Debug("Telegram notification sent",
			zap.String("user_id", userID.String()),
			zap.String("event_type", string(event.Type)),
		)
	}

	return errors.Join(errs...)
}
