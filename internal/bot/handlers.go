package bot

import (
	"context"
	"errors"
	"fmt"

	"lead_bot/internal/model"
	"lead_bot/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.replyWithKeyboard(chatID, `Lead Bot

Watches your Telegram chats and feeds for messages that match your keywords and forwards them as leads.

Choose a section:`, mainKeyboard())
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Menus:
/start — main menu
/settings — parser settings, keywords, stopwords, blacklist
/history — last 10 leads
/accounts — monitored accounts
/cancel — drop a pending input

Feed sources:
/addsource <url> — add an RSS/Atom feed
/sources — list feeds
/rmsource <id> — delete a feed
/pausesource <id> — pause polling
/resumesource <id> — resume polling

Patterns:
sell — matches anywhere in the text
_car_ — matches car as a whole word only
iphone+pro — every part must occur

A message is a lead when it matches a keyword and no stopword.`)
}

func (b *Bot) handleAddSource(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /addsource <url>")
		return
	}

	feed, err := b.fetcher.Fetch(ctx, args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to fetch feed: %v", err))
		return
	}

	title := feed.Title
	if title == "" {
		title = args
	}

	src := &model.Source{
		Title:    title,
		URL:      args,
		IsActive: true,
	}
	if err := b.store.CreateSource(ctx, src); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save source: %v", err))
		return
	}

	b.log.Info("source added", "source_id", src.ID, "url", src.URL)
	b.reply(chatID, fmt.Sprintf("Source added!\n#%d %s\nURL: %s\nNew items run through the same filters as channel posts.",
		src.ID, src.Title, src.URL))
}

func (b *Bot) handleSources(ctx context.Context, chatID int64) {
	sources, err := b.store.ListSources(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatSourceList(sources))
}

func (b *Bot) handleRemoveSource(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmsource <id>")
		return
	}

	src, err := b.store.GetSource(ctx, id)
	if err != nil {
		b.replySourceErr(chatID, id, err)
		return
	}

	if err := b.store.DeleteSource(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error deleting source: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Source #%d \"%s\" deleted.", id, src.Title))
}

func (b *Bot) handleSetSourceActive(ctx context.Context, chatID int64, args string, active bool) {
	usage, verb := "Usage: /pausesource <id>", "paused"
	if active {
		usage, verb = "Usage: /resumesource <id>", "resumed"
	}

	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, usage)
		return
	}

	src, err := b.store.GetSource(ctx, id)
	if err != nil {
		b.replySourceErr(chatID, id, err)
		return
	}

	src.IsActive = active
	if err := b.store.UpdateSource(ctx, src); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Source #%d \"%s\" %s.", id, src.Title, verb))
}

func (b *Bot) replySourceErr(chatID, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Source #%d not found.", id))
		return
	}
	b.reply(chatID, fmt.Sprintf("Error: %v", err))
}
