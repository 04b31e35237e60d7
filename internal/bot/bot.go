// Package bot implements the administrative Telegram bot: parser settings,
// word lists, blacklist, lead history, feed sources and monitored accounts.
// It also delivers lead notifications.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/patrickmn/go-cache"

	"lead_bot/internal/accounts"
	"lead_bot/internal/config"
	"lead_bot/internal/fetcher"
	"lead_bot/internal/storage"
)

// inputTTL is how long the bot waits for the reply to an input prompt.
const inputTTL = 10 * time.Minute

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the admin bot. It also sends lead notifications.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	accounts *accounts.Store
	cfg      *config.Config
	fetcher  *fetcher.Fetcher
	log      *slog.Logger

	// state holds pending input prompts and list sort orders per chat.
	state *cache.Cache
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, accs *accounts.Store, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return newBot(api, store, accs, cfg, fetcher.New(http.DefaultClient), log), nil
}

func newBot(api telegramAPI, store storage.Storage, accs *accounts.Store, cfg *config.Config, f *fetcher.Fetcher, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		accounts: accs,
		cfg:      cfg,
		fetcher:  f,
		log:      log,
		state:    cache.New(inputTTL, time.Minute),
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.ack(cb.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleInput(ctx, msg.Chat.ID, msg.Text)
}

// SendHTML sends an HTML message with link previews disabled.
func (b *Bot) SendHTML(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send html: %w", err)
	}
	return nil
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start", "menu":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "cancel":
		b.handleCancel(chatID)
	case "settings":
		b.showSettings(ctx, chatID)
	case "history":
		b.showHistory(ctx, chatID)
	case "accounts":
		b.showAccounts(chatID)
	case "addsource":
		b.handleAddSource(ctx, chatID, args)
	case "sources":
		b.handleSources(ctx, chatID)
	case "rmsource":
		b.handleRemoveSource(ctx, chatID, args)
	case "pausesource":
		b.handleSetSourceActive(ctx, chatID, args, false)
	case "resumesource":
		b.handleSetSourceActive(ctx, chatID, args, true)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func chatKey(prefix string, chatID int64) string {
	return prefix + ":" + strconv.FormatInt(chatID, 10)
}
