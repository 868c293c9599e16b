package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"library/internal/models"
)

// Notifier delivers short plain-text messages about loan activity
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards every message
type Nop struct{}

// Notify does nothing
func (Nop) Notify(ctx context.Context, text string) error {
	return nil
}

// sender is the part of *tgbotapi.BotAPI the notifier uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts messages to a single chat through a bot
type Telegram struct {
	api    sender
	chatID int64
	logger *zap.Logger
}

// NewTelegram creates a notifier for the bot identified by token
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram notifier created",
		zap.String("bot_username", api.Self.UserName),
		zap.Int64("chat_id", chatID),
	)

	return newTelegram(api, chatID, logger), nil
}

func newTelegram(api sender, chatID int64, logger *zap.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, logger: logger}
}

// Notify sends text to the configured chat
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	t.logger.Debug("Notification sent", zap.Int64("chat_id", t.chatID))
	return nil
}

// BorrowedMessage describes a new loan
func BorrowedMessage(bookTitle, memberName string, due time.Time) string {
	return fmt.Sprintf("Book borrowed: %s by %s, due %s", bookTitle, memberName, models.FormatDay(due))
}

// ReturnedMessage describes a closed loan
func ReturnedMessage(bookTitle, memberName string) string {
	return fmt.Sprintf("Book returned: %s by %s", bookTitle, memberName)
}
