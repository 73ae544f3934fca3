package notifier

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the subset of the bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts operational notifications to the ops chat.
type TelegramNotifier struct {
	bot    Sender
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(bot Sender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}
}

func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

func (n *TelegramNotifier) NotifyAssignment(bookingID, washerID int64) error {
	text := fmt.Sprintf("🧺 Booking #%d auto-assigned to washer %d", bookingID, washerID)
	return n.send(text)
}

func (n *TelegramNotifier) NotifyApproval(userID int64, status string) error {
	icon := "✅"
	if status != "approved" {
		icon = "❌"
	}
	text := fmt.Sprintf("%s Washer application for user %d: %s", icon, userID, status)
	return n.send(text)
}

func (n *TelegramNotifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	n.logger.Debug().Int64("chat_id", n.chatID).Msg("Notification sent")
	return nil
}
