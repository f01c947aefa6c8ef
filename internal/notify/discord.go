// Package notify tells players that a game is waiting on their decision.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"lifesim/internal/game"
	"lifesim/internal/story"
)

// Notifier delivers pending-event notices. Implementations must tolerate
// the same notice arriving on every worker pass.
type Notifier interface {
	Notify(ctx context.Context, pending []game.PendingNotice) (int, error)
	Close() error
}

// Sender is the slice of *discordgo.Session used for posting.
type Sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts one embed per pending event to a channel. A notice is sent
// once while its event stays pending.
type Discord struct {
	sender  Sender
	channel string
	closer  func() error
	log     *slog.Logger

	mu   sync.Mutex
	sent map[string]bool
}

// NewDiscord opens a bot session with token.
func NewDiscord(token, channel string, logger *slog.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	d := NewDiscordWithSender(session, channel, logger)
	d.closer = session.Close
	return d, nil
}

func NewDiscordWithSender(sender Sender, channel string, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		sender:  sender,
		channel: channel,
		log:     logger,
		sent:    make(map[string]bool),
	}
}

func (d *Discord) Notify(ctx context.Context, pending []game.PendingNotice) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := make(map[string]bool, len(pending))
	posted := 0
	var firstErr error
	for _, n := range pending {
		key := noticeKey(n)
		current[key] = true
		if d.sent[key] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return posted, err
		}
		if _, err := d.sender.ChannelMessageSendEmbed(d.channel, Embed(n), discordgo.WithContext(ctx)); err != nil {
			d.log.Error("discord notify failed", "game_id", n.GameID, "event", n.Event.Key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		d.sent[key] = true
		posted++
	}
	// Forget resolved events so the map tracks only what is pending now.
	for key := range d.sent {
		if !current[key] {
			delete(d.sent, key)
		}
	}
	return posted, firstErr
}

func (d *Discord) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

// Embed renders a notice as a Discord embed.
func Embed(n game.PendingNotice) *discordgo.MessageEmbed {
	player := n.PlayerName
	if player == "" {
		player = "Player"
	}
	choices := make([]string, 0, len(n.Event.Choices))
	for _, c := range n.Event.Choices {
		choices = append(choices, fmt.Sprintf("`%s` %s", c.ID, c.Label))
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Game", Value: n.GameID, Inline: true},
		{Name: "Date", Value: n.Date, Inline: true},
	}
	if len(choices) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Choices", Value: strings.Join(choices, "\n")})
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s: %s", player, n.Event.Title),
		Description: n.Event.Description,
		Color:       embedColor(n),
		Fields:      fields,
	}
}

func embedColor(n game.PendingNotice) int {
	switch n.Event.Mood {
	case story.MoodGood:
		return 0x2ecc71
	case story.MoodBad:
		return 0xe74c3c
	default:
		return 0x3498db
	}
}

func noticeKey(n game.PendingNotice) string {
	return n.GameID + "|" + n.Event.Key + "|" + n.Date
}

// Log writes notices to the logger. The worker uses it when Discord is not
// configured.
type Log struct {
	log *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{log: logger}
}

func (l *Log) Notify(_ context.Context, pending []game.PendingNotice) (int, error) {
	for _, n := range pending {
		l.log.Info("event awaiting decision", "game_id", n.GameID, "player", n.PlayerName, "date", n.Date, "event", n.Event.Title)
	}
	return len(pending), nil
}

func (l *Log) Close() error { return nil }
