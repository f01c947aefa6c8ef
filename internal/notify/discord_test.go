package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"lifesim/internal/game"
	"lifesim/internal/story"
)

type fakeSender struct {
	embeds []*discordgo.MessageEmbed
	err    error
}

func (f *fakeSender) ChannelMessageSendEmbed(_ string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{}, nil
}

func notice(id, key, date string) game.PendingNotice {
	return game.PendingNotice{
		GameID:     id,
		PlayerName: "Ada",
		Date:       date,
		Event: story.Event{
			Key:   key,
			Kind:  story.KindStoryline,
			Title: "Start Investing",
			Choices: []story.Choice{
				{ID: "accept", Label: "Yes"},
				{ID: "decline", Label: "No"},
			},
		},
	}
}

func TestDiscordDedupesPendingNotices(t *testing.T) {
	ctx := context.Background()
	f := &fakeSender{}
	d := NewDiscordWithSender(f, "chan", slog.New(slog.NewTextHandler(io.Discard, nil)))

	a := notice("g1", "story:2009-01-03", "2009-01-03")
	b := notice("g2", "story:2009-01-03", "2009-01-03")

	if n, err := d.Notify(ctx, []game.PendingNotice{a, b}); err != nil || n != 2 {
		t.Fatalf("first pass posted %d, %v", n, err)
	}
	if n, err := d.Notify(ctx, []game.PendingNotice{a, b}); err != nil || n != 0 {
		t.Fatalf("second pass posted %d, %v", n, err)
	}
	// g1 resolved its event; a later identical notice is new again.
	if n, _ := d.Notify(ctx, []game.PendingNotice{b}); n != 0 {
		t.Fatalf("third pass posted %d", n)
	}
	if n, _ := d.Notify(ctx, []game.PendingNotice{a, b}); n != 1 {
		t.Fatalf("fourth pass posted %d", n)
	}
	if len(f.embeds) != 3 {
		t.Fatalf("embeds %d", len(f.embeds))
	}
}

func TestDiscordRetriesFailedSends(t *testing.T) {
	ctx := context.Background()
	f := &fakeSender{err: errors.New("rate limited")}
	d := NewDiscordWithSender(f, "chan", slog.New(slog.NewTextHandler(io.Discard, nil)))
	a := notice("g1", "k", "2009-01-03")

	if n, err := d.Notify(ctx, []game.PendingNotice{a}); err == nil || n != 0 {
		t.Fatalf("expected failure, got %d %v", n, err)
	}
	f.err = nil
	if n, err := d.Notify(ctx, []game.PendingNotice{a}); err != nil || n != 1 {
		t.Fatalf("retry posted %d, %v", n, err)
	}
}

func TestEmbed(t *testing.T) {
	e := Embed(notice("g1", "k", "2009-01-03"))
	if e.Title != "Ada: Start Investing" {
		t.Fatalf("title %q", e.Title)
	}
	if len(e.Fields) != 3 || !strings.Contains(e.Fields[2].Value, "`accept` Yes") {
		t.Fatalf("fields %+v", e.Fields)
	}
	if e.Color != 0x3498db {
		t.Fatalf("color %x", e.Color)
	}
}
