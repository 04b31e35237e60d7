// Package listener connects a monitored user account over MTProto and feeds
// its incoming messages into the lead pipeline.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"

	"lead_bot/internal/accounts"
	"lead_bot/internal/notify"
	"lead_bot/internal/pipeline"
)

// ErrUnauthorized is returned when the session file holds no valid login.
var ErrUnauthorized = errors.New("session is not authorized, run cmd/session")

// Processor consumes resolved messages.
type Processor interface {
	Process(ctx context.Context, msg pipeline.Message) (pipeline.Decision, error)
}

// Config holds the MTProto application credentials.
type Config struct {
	APIID      int
	APIHash    string
	SessionDir string
}

// SessionPath returns the session file location of an account.
func (c Config) SessionPath(acc accounts.Account) string {
	if filepath.IsAbs(acc.SessionFile) {
		return acc.SessionFile
	}
	return filepath.Join(c.SessionDir, acc.SessionFile)
}

// Listener streams one account's messages into a Processor.
type Listener struct {
	account accounts.Account
	cfg     Config
	proc    Processor
	log     *slog.Logger
	fwd     *forwarder

	// mu keeps messages of this account in arrival order.
	mu sync.Mutex
}

// New creates a Listener for acc.
func New(acc accounts.Account, cfg Config, proc Processor, log *slog.Logger) *Listener {
	return &Listener{
		account: acc,
		cfg:     cfg,
		proc:    proc,
		log:     log.With("account", acc.ID),
	}
}

// Run connects and processes updates until ctx is cancelled or the
// connection fails.
func (l *Listener) Run(ctx context.Context) error {
	path := l.cfg.SessionPath(l.account)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("session file: %w", err)
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		l.handle(ctx, e, u.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		l.handle(ctx, e, u.Message)
		return nil
	})

	gaps := updates.New(updates.Config{Handler: dispatcher})
	client := telegram.NewClient(l.cfg.APIID, l.cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: path},
		UpdateHandler:  gaps,
	})
	l.fwd = newForwarder(client.API())

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized || status.User == nil {
			return ErrUnauthorized
		}

		l.log.Info("listener connected", "user_id", status.User.ID, "username", status.User.Username)
		return gaps.Run(ctx, client.API(), status.User.ID, updates.AuthOptions{})
	})
}

func (l *Listener) handle(ctx context.Context, e tg.Entities, m tg.MessageClass) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return
	}
	in, ok := Convert(msg, e)
	if !ok {
		return
	}
	in.NotifyTarget = l.account.NotifyChatID

	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.proc.Process(ctx, in)
	if err != nil {
		l.log.Error("process message", "chat_id", in.ChatID, "message_id", in.MessageID, "error", err)
		return
	}
	if !d.Admitted {
		return
	}
	l.log.Debug("lead admitted", "chat_id", in.ChatID, "lead_id", d.Lead.ID)
	if d.DispatchErr == nil {
		l.forward(ctx, d.Target, msg, e)
	}
}

// forward copies the source message after the notification. Failures are
// logged only; the lead is already stored and announced.
func (l *Listener) forward(ctx context.Context, target string, msg *tg.Message, e tg.Entities) {
	if l.fwd == nil {
		return
	}
	chatID, err := notify.ParseTarget(target)
	if err != nil {
		return
	}
	if err := l.fwd.Forward(ctx, chatID, msg, e); err != nil {
		l.log.Warn("forward lead", "target", chatID, "message_id", msg.ID, "error", err)
	}
}
