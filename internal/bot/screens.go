package bot

import (
	"context"
	"fmt"

	"lead_bot/internal/model"
)

const listBlacklist = "blacklist"

func (b *Bot) showSettings(ctx context.Context, chatID int64) {
	s, err := b.store.Settings(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.replyWithKeyboard(chatID, FormatSettings(s), settingsKeyboard(s))
}

func (b *Bot) showWords(ctx context.Context, chatID int64, kind model.WordKind, page int) {
	order := b.sortOrder(chatID, string(kind))
	words, err := b.store.ListWords(ctx, kind, order)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.replyWithKeyboard(chatID, FormatWordPage(kind, words, page, order), wordsKeyboard(kind, words, page, order))
}

func (b *Bot) showBlacklist(ctx context.Context, chatID int64, page int) {
	order := b.sortOrder(chatID, listBlacklist)
	entries, err := b.store.ListBlacklist(ctx, order)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.replyWithKeyboard(chatID, FormatBlacklistPage(entries, page, order), blacklistKeyboard(entries, page, order))
}

func (b *Bot) showHistory(ctx context.Context, chatID int64) {
	leads, err := b.store.RecentLeads(ctx, historyLimit)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.replyWithKeyboard(chatID, FormatHistory(leads), backKeyboard(menuMain))
}

func (b *Bot) showAccounts(chatID int64) {
	accs, err := b.accounts.List()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	current, err := b.accounts.Current()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.replyWithKeyboard(chatID, FormatAccounts(accs, current), accountsKeyboard(accs, current))
}

func (b *Bot) copyWords(ctx context.Context, chatID int64, kind model.WordKind) {
	words, err := b.store.ListWords(ctx, kind, b.sortOrder(chatID, string(kind)))
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.sendChunks(chatID, model.Texts(words), fmt.Sprintf("%s: the list is empty.", kindTitle(kind)))
}

func (b *Bot) copyBlacklist(ctx context.Context, chatID int64) {
	entries, err := b.store.ListBlacklist(ctx, b.sortOrder(chatID, listBlacklist))
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.sendChunks(chatID, blacklistLines(entries), "Blacklist: the list is empty.")
}

func (b *Bot) sendChunks(chatID int64, lines []string, empty string) {
	if len(lines) == 0 {
		b.reply(chatID, empty)
		return
	}
	for _, chunk := range ChunkLines(lines, messageLimit) {
		b.reply(chatID, chunk)
	}
}
