package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"

	"lead_bot/internal/model"
)

// inputKind is what the next plain-text message from a chat is read as.
type inputKind string

const (
	inputKeywords   inputKind = "keywords"
	inputStopwords  inputKind = "stopwords"
	inputBlacklist  inputKind = "blacklist"
	inputNotifyChat inputKind = "notify_chat"
)

func wordInput(kind model.WordKind) inputKind {
	if kind == model.Stopword {
		return inputStopwords
	}
	return inputKeywords
}

func (b *Bot) setPending(chatID int64, kind inputKind) {
	b.state.Set(chatKey("input", chatID), kind, cache.DefaultExpiration)
}

func (b *Bot) pending(chatID int64) (inputKind, bool) {
	v, ok := b.state.Get(chatKey("input", chatID))
	if !ok {
		return "", false
	}
	kind, ok := v.(inputKind)
	return kind, ok
}

func (b *Bot) clearPending(chatID int64) {
	b.state.Delete(chatKey("input", chatID))
}

func (b *Bot) sortOrder(chatID int64, list string) model.SortOrder {
	if v, ok := b.state.Get(chatKey("sort:"+list, chatID)); ok {
		if order, ok := v.(model.SortOrder); ok {
			return order
		}
	}
	return model.SortRecent
}

func (b *Bot) flipSortOrder(chatID int64, list string) {
	next := model.SortAlpha
	if b.sortOrder(chatID, list) == model.SortAlpha {
		next = model.SortRecent
	}
	b.state.Set(chatKey("sort:"+list, chatID), next, cache.NoExpiration)
}

func (b *Bot) handleCancel(chatID int64) {
	if _, ok := b.pending(chatID); !ok {
		b.reply(chatID, "Nothing to cancel.")
		return
	}
	b.clearPending(chatID)
	b.reply(chatID, "Cancelled.")
}

// handleInput consumes a plain-text message as the answer to the pending
// prompt. Messages without a prompt are ignored.
func (b *Bot) handleInput(ctx context.Context, chatID int64, text string) {
	kind, ok := b.pending(chatID)
	if !ok {
		return
	}

	switch kind {
	case inputKeywords:
		b.addWords(ctx, chatID, model.Keyword, text)
	case inputStopwords:
		b.addWords(ctx, chatID, model.Stopword, text)
	case inputBlacklist:
		b.addBlacklist(ctx, chatID, text)
	case inputNotifyChat:
		b.setNotifyChat(ctx, chatID, text)
	}
}

func (b *Bot) addWords(ctx context.Context, chatID int64, kind model.WordKind, text string) {
	lines := SplitLines(text)
	if len(lines) == 0 {
		b.reply(chatID, "Send at least one word, one per line, or /cancel.")
		return
	}

	var added int
	var exists []string
	for _, line := range lines {
		ok, err := b.store.AddWord(ctx, kind, line)
		if err != nil {
			b.log.Error("add word", "kind", kind, "chat_id", chatID, "error", err)
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		if ok {
			added++
		} else {
			exists = append(exists, line)
		}
	}
	b.clearPending(chatID)

	b.reply(chatID, addSummary(added, exists))
	b.showWords(ctx, chatID, kind, 0)
}

func (b *Bot) addBlacklist(ctx context.Context, chatID int64, text string) {
	ids, err := ParseUserIDs(text)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("%v. Nothing was added. Send numeric sender IDs, one per line, or /cancel.", capitalize(err.Error())))
		return
	}

	var added int
	var exists []string
	for _, id := range ids {
		ok, err := b.store.AddToBlacklist(ctx, id)
		if err != nil {
			b.log.Error("add to blacklist", "chat_id", chatID, "user_id", id, "error", err)
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		if ok {
			added++
		} else {
			exists = append(exists, strconv.FormatInt(id, 10))
		}
	}
	b.clearPending(chatID)

	b.reply(chatID, addSummary(added, exists))
	b.showBlacklist(ctx, chatID, 0)
}

func (b *Bot) setNotifyChat(ctx context.Context, chatID int64, text string) {
	id, err := ParseChatID(text)
	if err != nil {
		b.reply(chatID, "Chat ID must be a non-zero integer, for example -1001234567890. Try again or /cancel.")
		return
	}
	if err := b.store.SetConfig(ctx, model.KeyNotificationChatID, strconv.FormatInt(id, 10)); err != nil {
		b.log.Error("set notification chat", "chat_id", chatID, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.clearPending(chatID)

	b.reply(chatID, fmt.Sprintf("Notification chat set to %d.", id))
	b.showSettings(ctx, chatID)
}

func addSummary(added int, exists []string) string {
	s := fmt.Sprintf("Added: %d.", added)
	if len(exists) > 0 {
		s += "\nAlready exists: " + strings.Join(exists, ", ")
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
