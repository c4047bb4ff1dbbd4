package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/event"
)

type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram builds a Telegram notifier. Empty token disables it.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, log: log}, nil
}

// Handle forwards purchase and penalty events. Other events are ignored.
func (t *Telegram) Handle(ev event.Event) {
	var text string
	switch e := ev.(type) {
	case event.PurchaseDoneEvent:
		text = fmt.Sprintf("Bought %dx %s at %d (total %d)", e.Qty, e.ItemName, e.Price, e.Price*e.Qty)
	case event.PenaltyDetectedEvent:
		text = "Penalty warning detected on screen, cooling down"
	default:
		return
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		t.log.Warn("telegram notification failed", "error", err)
	}
}
