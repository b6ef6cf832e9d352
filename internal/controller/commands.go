package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
)

const (
	textNotLinked = "❌ Аккаунт не привязан. Откройте ссылку на бота из личного кабинета."
	textFailure   = "❌ Произошла ошибка. Попробуйте позже."
)

// HandleStart обрабатывает /start <user-id> из ссылки личного кабинета
func (c *BotController) HandleStart(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	from := update.Message.From

	payload := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/start"))
	if payload == "" {
		contact, err := c.contacts.GetByTelegramID(ctx, from.ID)
		if err != nil {
			if !errors.Is(err, errs.ErrNotFound) {
				c.logger.Error("Failed to get contact", zap.Int64("telegram_id", from.ID), zap.Error(err))
			}
			c.sendMessage(ctx, chatID, textNotLinked)
			return
		}
		c.sendMessage(ctx, chatID, fmt.Sprintf("👋 С возвращением, %s! Уведомления приходят сюда.", contact.DisplayName()))
		return
	}

	userID, err := uuid.Parse(payload)
	if err != nil || userID == uuid.Nil {
		c.sendMessage(ctx, chatID, "❌ Неверная ссылка. Откройте ссылку на бота из личного кабинета ещё раз.")
		return
	}

	telegramID := from.ID
	contact, err := c.contacts.Register(ctx, model.Actor{ID: userID}, service.ContactInput{
		TelegramID:   &telegramID,
		Username:     from.Username,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		LanguageCode: from.LanguageCode,
	})
	if err != nil {
		c.logger.Error("Failed to link telegram account",
			zap.String("user_id", userID.String()),
			zap.Int64("telegram_id", telegramID),
			zap.Error(err),
		)
		c.sendMessage(ctx, chatID, "❌ Не удалось привязать аккаунт. Попробуйте позже.")
		return
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Аккаунт привязан. Сюда будут приходить уведомления о запросах, предложениях времени и занятиях.\n\n"+
			"/mute - Выключить уведомления\n"+
			"/unmute - Включить уведомления\n"+
			"/help - Справка",
		contact.DisplayName(),
	)
	if contact.Muted {
		text += "\n\n🔕 Уведомления сейчас выключены."
	}
	c.sendMessage(ctx, chatID, text)
}

// HandleHelp обрабатывает команду /help
func (c *BotController) HandleHelp(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/start - Привязать аккаунт (через ссылку из личного кабинета)\n" +
		"/mute - Выключить уведомления\n" +
		"/unmute - Включить уведомления\n" +
		"/help - Показать эту справку"

	c.sendMessage(ctx, update.Message.Chat.ID, helpText)
}

// HandleMute обрабатывает команду /mute
func (c *BotController) HandleMute(ctx context.Context, _ *bot.Bot, update *models.Update) {
	c.setMuted(ctx, update, true, "🔕 Уведомления выключены. Включить: /unmute")
}

// HandleUnmute обрабатывает команду /unmute
func (c *BotController) HandleUnmute(ctx context.Context, _ *bot.Bot, update *models.Update) {
	c.setMuted(ctx, update, false, "🔔 Уведомления включены.")
}

func (c *BotController) setMuted(ctx context.Context, update *models.Update, muted bool, done string) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	contact, ok := c.requireContact(ctx, update)
	if !ok {
		return
	}

	if err := c.contacts.SetMuted(ctx, model.Actor{ID: contact.UserID}, muted); err != nil {
		c.logger.Error("Failed to toggle notifications",
			zap.String("user_id", contact.UserID.String()),
			zap.Error(err),
		)
		c.sendMessage(ctx, chatID, textFailure)
		return
	}

	c.sendMessage(ctx, chatID, done)
}

// requireContact проверяет что Telegram-аккаунт привязан
func (c *BotController) requireContact(ctx context.Context, update *models.Update) (*model.Contact, bool) {
	telegramID := update.Message.From.ID
	contact, err := c.contacts.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return contact, true
	}

	if errors.Is(err, errs.ErrNotFound) {
		c.sendMessage(ctx, update.Message.Chat.ID, textNotLinked)
		return nil, false
	}

	c.logger.Error("Failed to get contact", zap.Int64("telegram_id", telegramID), zap.Error(err))
	c.sendMessage(ctx, update.Message.Chat.ID, textFailure)
	return nil, false
}
