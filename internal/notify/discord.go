package notify

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/Tioit-Wang/ArenaBreakoutInfinite-Buy-sub001/internal/event"
)

type Discord struct {
	session   *discordgo.Session
	channelID string
	log       *slog.Logger
}

// NewDiscord builds a Discord notifier. Empty token disables it.
func NewDiscord(token, channelID string, log *slog.Logger) (*Discord, error) {
	if token == "" || channelID == "" {
		return nil, nil
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	return &Discord{session: session, channelID: channelID, log: log}, nil
}

func (d *Discord) Handle(ev event.Event) {
	var text string
	switch e := ev.(type) {
	case event.PurchaseDoneEvent:
		text = fmt.Sprintf("Bought %dx %s at %d (total %d)", e.Qty, e.ItemName, e.Price, e.Price*e.Qty)
	case event.PenaltyDetectedEvent:
		text = "Penalty warning detected on screen, cooling down"
	default:
		return
	}

	if _, err := d.session.ChannelMessageSend(d.channelID, text); err != nil {
		d.log.Warn("discord notification failed", "error", err)
	}
}
