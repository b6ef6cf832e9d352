// Package controller Telegram-бот привязки аккаунтов: пользователь платформы
// открывает ссылку t.me/<bot>?start=<user-id>, и бот запоминает его Telegram ID как канал уведомлений.
package controller

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
)

// Sender часть API бота для ответов; *bot.Bot её реализует
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type BotController struct {
	bot      *bot.Bot
	sender   Sender
	contacts *service.ContactService
	logger   *zap.Logger
}

func NewBotController(botInstance *bot.Bot, contacts *service.ContactService, logger *zap.Logger) *BotController {
	return &BotController{
		bot:      botInstance,
		sender:   botInstance,
		contacts: contacts,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, c.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/mute", bot.MatchTypeExact, c.HandleMute)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/unmute", bot.MatchTypeExact, c.HandleUnmute)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Привязать аккаунт"},
		{Command: "mute", Description: "🔕 Выключить уведомления"},
		{Command: "unmute", Description: "🔔 Включить уведомления"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Start запускает long polling; блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
}

// sendMessage отправляет сообщение и логирует если не удалось
func (c *BotController) sendMessage(ctx context.Context, chatID int64, text string) {
	_, err := c.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
