package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/model"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	b.ack(cb.ID, "")

	parts := strings.Split(cb.Data, ":")
	action := parts[0]
	args := parts[1:]

	b.log.Info("callback",
		"action", action,
		"args", args,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cbMenu:
		if len(args) == 1 {
			b.handleMenu(ctx, chatID, args[0])
		}
	case cbToggle:
		if len(args) == 1 {
			b.handleToggle(ctx, chatID, model.ConfigKey(args[0]))
		}
	case cbNotifyChat:
		b.setPending(chatID, inputNotifyChat)
		b.reply(chatID, "Send the notification chat ID, for example -1001234567890, or /cancel.")

	case cbWords, cbWordSort, cbWordCopy, cbWordAdd, cbWordClear, cbWordClearOK, cbWordDelete:
		b.handleWordCallback(ctx, chatID, action, args)

	case cbBlacklist:
		b.showBlacklist(ctx, chatID, intArg(args, 0))
	case cbBlSort:
		b.flipSortOrder(chatID, listBlacklist)
		b.showBlacklist(ctx, chatID, 0)
	case cbBlCopy:
		b.copyBlacklist(ctx, chatID)
	case cbBlAdd:
		b.setPending(chatID, inputBlacklist)
		b.reply(chatID, "Send sender IDs to block, one per line, or /cancel. Channels use their -100... ID.")
	case cbBlClear:
		b.replyWithKeyboard(chatID, "Delete the whole blacklist? This cannot be undone.",
			confirmKeyboard(cbBlClearOK, cbBlacklist+":0"))
	case cbBlClearOK:
		if err := b.store.ClearBlacklist(ctx); err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.reply(chatID, "Blacklist cleared.")
		b.showBlacklist(ctx, chatID, 0)
	case cbBlDelete:
		if len(args) != 2 {
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return
		}
		if _, err := b.store.RemoveFromBlacklist(ctx, userID); err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.showBlacklist(ctx, chatID, intArg(args, 1))

	case cbAccToggle:
		if len(args) == 1 {
			b.handleAccountToggle(chatID, args[0])
		}
	case cbAccCurrent:
		if len(args) == 1 {
			b.handleAccountCurrent(chatID, args[0])
		}
	}
}

func (b *Bot) handleMenu(ctx context.Context, chatID int64, screen string) {
	switch screen {
	case menuMain:
		b.handleStart(chatID)
	case menuSettings:
		b.showSettings(ctx, chatID)
	case menuHistory:
		b.showHistory(ctx, chatID)
	case menuSources:
		b.handleSources(ctx, chatID)
	case menuAccounts:
		b.showAccounts(chatID)
	case menuHelp:
		b.handleHelp(chatID)
	}
}

func (b *Bot) handleToggle(ctx context.Context, chatID int64, key model.ConfigKey) {
	if _, err := b.store.ToggleConfig(ctx, key); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.showSettings(ctx, chatID)
}

func (b *Bot) handleWordCallback(ctx context.Context, chatID int64, action string, args []string) {
	if len(args) == 0 {
		return
	}
	kind := model.WordKind(args[0])
	if kind != model.Keyword && kind != model.Stopword {
		return
	}

	switch action {
	case cbWords:
		b.showWords(ctx, chatID, kind, intArg(args, 1))
	case cbWordSort:
		b.flipSortOrder(chatID, string(kind))
		b.showWords(ctx, chatID, kind, 0)
	case cbWordCopy:
		b.copyWords(ctx, chatID, kind)
	case cbWordAdd:
		b.setPending(chatID, wordInput(kind))
		b.reply(chatID, fmt.Sprintf("Send %s to add, one per line, or /cancel.\n\n"+
			"sell matches anywhere, _car_ matches the whole word, iphone+pro needs every part.",
			strings.ToLower(kindTitle(kind))))
	case cbWordClear:
		b.replyWithKeyboard(chatID, fmt.Sprintf("Delete all %s? This cannot be undone.", strings.ToLower(kindTitle(kind))),
			confirmKeyboard(cbWordClearOK+":"+string(kind), fmt.Sprintf("%s:%s:0", cbWords, kind)))
	case cbWordClearOK:
		if err := b.store.ClearWords(ctx, kind); err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.reply(chatID, fmt.Sprintf("%s cleared.", kindTitle(kind)))
		b.showWords(ctx, chatID, kind, 0)
	case cbWordDelete:
		if len(args) != 3 {
			return
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return
		}
		if _, err := b.store.RemoveWord(ctx, kind, id); err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.showWords(ctx, chatID, kind, intArg(args, 2))
	}
}

func (b *Bot) handleAccountToggle(chatID int64, id string) {
	enabled, err := b.accounts.Toggle(id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	b.log.Info("account toggled", "account", id, "enabled", enabled)
	b.reply(chatID, fmt.Sprintf("Account %s %s.", id, state))
	b.showAccounts(chatID)
}

func (b *Bot) handleAccountCurrent(chatID int64, id string) {
	if err := b.accounts.SetCurrent(id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.showAccounts(chatID)
}

// intArg returns args[i] as an int, or 0 when missing or malformed.
func intArg(args []string, i int) int {
	if i >= len(args) {
		return 0
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0
	}
	return n
}
