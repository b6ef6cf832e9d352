package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// MessageStore запись служебных сообщений в чат
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *model.ChatMessage) (bool, error)
}

// ChatAttacher повторно открывает чат для принятого запроса, если при принятии это не удалось
type ChatAttacher interface {
	AttachPendingChat(ctx context.Context, requestID uuid.UUID) error
}

// ChatSink пишет события в чат пары: предложения карточкой, остальное системным сообщением
type ChatSink struct {
	messages  MessageStore
	attacher  ChatAttacher
	formatter Formatter
	clock     clock.Clock
	logger    *zap.Logger
}

func NewChatSink(messages MessageStore, attacher ChatAttacher, formatter Formatter, clk clock.Clock, logger *zap.Logger) *ChatSink {
	return &ChatSink{
		messages:  messages,
		attacher:  attacher,
		formatter: formatter,
		clock:     clk,
		logger:    logger,
	}
}

func (s *ChatSink) Name() string { return "chat" }

func (s *ChatSink) Deliver(ctx context.Context, event model.Event) error {
	if event.Type == model.EventRequestChatPending {
		if s.attacher == nil {
			return nil
		}
		if err := s.attacher.AttachPendingChat(ctx, event.EntityID); err != nil {
			return fmt.Errorf("attach pending chat: %w", err)
		}
		return nil
	}

	// События вне чата (интервью, новые запросы) сюда не пишем
	if event.ChatID == nil {
		return nil
	}

	msg := s.formatter.Format(event)
	if msg.Title == "" {
		return nil
	}

	kind := model.MessageKindSystem
	if event.Type == model.EventProposalCreated || event.Type == model.EventProposalCounterProposed {
		kind = model.MessageKindSessionProposal
	}

	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return Permanent(fmt.Errorf("marshal payload: %w", err))
	}

	chatMsg := &model.ChatMessage{
		ID:        uuid.New(),
		ChatID:    *event.ChatID,
		SenderID:  event.ActorID,
		Kind:      kind,
		Text:      msg.Text(),
		Payload:   raw,
		DedupeKey: event.DedupeKey(s.Name()) + ":" + string(kind),
		CreatedAt: s.clock.Now(),
	}

	inserted, err := s.messages.AppendMessage(ctx, chatMsg)
	if err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	if !inserted {
		s.logger.Debug("Chat message already posted",
			zap.String("event_id", event.ID.String()),
			zap.String("chat_id", event.ChatID.String()),
		)
	}
	return nil
}
