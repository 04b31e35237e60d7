// Package pipeline decides whether an inbound message is a lead.
//
// Every message runs through a fixed chain of gates and stops at the first
// one that rejects it:
//
//	1 working_status on               Disabled
//	2 sender is not a bot             SenderIsBot
//	3 chat kind enabled               ChatKindDisabled
//	4 text not empty                  EmptyMessage
//	5 sender not blacklisted          Blacklisted
//	6 keywords match, stopwords don't NoKeywordMatch / StopwordMatch
//	7 not seen within the window      Duplicate (only with ignore_duplicates)
//
// An admitted message is appended to the lead history and then handed to
// the notifier. A failed notification never removes the history record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lead_bot/internal/filter"
	"lead_bot/internal/model"
	"lead_bot/internal/notify"
)

// DefaultDuplicateWindow is how far back duplicate suppression looks.
const DefaultDuplicateWindow = 24 * time.Hour

// Store is the subset of storage the pipeline reads and appends to.
type Store interface {
	Settings(ctx context.Context) (model.Settings, error)
	IsBlacklisted(ctx context.Context, userID int64) (bool, error)
	ListWords(ctx context.Context, kind model.WordKind, order model.SortOrder) ([]model.Word, error)
	AppendLead(ctx context.Context, lead *model.Lead) error
	HasDuplicate(ctx context.Context, text string, window time.Duration) (bool, error)
}

// Notifier delivers a lead notification. A nil error means delivered.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Recorder receives pipeline counters.
type Recorder interface {
	RecordMessageReceived(chatKind string)
	RecordDecision(reason string)
	RecordDispatch(status string)
}

// Message is an inbound message as resolved by a transport adapter.
type Message struct {
	Text         string
	SenderID     int64
	SenderIsBot  bool
	ChatKind     model.ChatKind
	ChatTitle    string
	ChatID       int64
	MessageID    int
	ChatUsername string
	// URL replaces the Telegram permalink when set.
	URL string
	// NotifyTarget replaces the configured notification chat when set.
	NotifyTarget string
}

// Decision is the outcome of processing one message.
type Decision struct {
	Admitted bool
	Reason   model.Reason
	// Lead is the stored record when Admitted.
	Lead *model.Lead
	// Target is the notification chat the lead was sent to.
	Target string
	// DispatchErr is the notification failure, if any. The lead is kept.
	DispatchErr error
}

// Pipeline evaluates messages against the shared store. It is safe for
// concurrent use by several listeners.
type Pipeline struct {
	store    Store
	notifier Notifier
	log      *slog.Logger
	metrics  Recorder
	window   time.Duration

	// mu makes the duplicate check and the append one step.
	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDuplicateWindow overrides DefaultDuplicateWindow.
func WithDuplicateWindow(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.metrics = r
		}
	}
}

// New creates a Pipeline.
func New(store Store, notifier Notifier, log *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		notifier: notifier,
		log:      log,
		metrics:  nopRecorder{},
		window:   DefaultDuplicateWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs msg through every gate. The error is non-nil only when the
// store fails; notification failures are reported in Decision.DispatchErr.
func (p *Pipeline) Process(ctx context.Context, msg Message) (Decision, error) {
	p.metrics.RecordMessageReceived(string(msg.ChatKind))

	d, err := p.process(ctx, msg)
	if err != nil {
		p.metrics.RecordDecision("error")
		return d, err
	}
	p.metrics.RecordDecision(string(d.Reason))

	if !d.Admitted {
		p.log.Debug("message rejected",
			"chat_id", msg.ChatID, "sender_id", msg.SenderID, "reason", d.Reason)
	}
	return d, nil
}

func (p *Pipeline) process(ctx context.Context, msg Message) (Decision, error) {
	settings, err := p.store.Settings(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("read settings: %w", err)
	}

	if !settings.Working {
		return reject(model.ReasonDisabled), nil
	}
	if msg.SenderIsBot {
		return reject(model.ReasonSenderIsBot), nil
	}
	if !settings.ChatKindEnabled(msg.ChatKind) {
		return reject(model.ReasonChatKindDisabled), nil
	}
	if msg.Text == "" {
		return reject(model.ReasonEmptyMessage), nil
	}

	blocked, err := p.store.IsBlacklisted(ctx, msg.SenderID)
	if err != nil {
		return Decision{}, fmt.Errorf("check blacklist: %w", err)
	}
	if blocked {
		return reject(model.ReasonBlacklisted), nil
	}

	keywords, err := p.store.ListWords(ctx, model.Keyword, model.SortRecent)
	if err != nil {
		return Decision{}, fmt.Errorf("list keywords: %w", err)
	}
	stopwords, err := p.store.ListWords(ctx, model.Stopword, model.SortRecent)
	if err != nil {
		return Decision{}, fmt.Errorf("list stopwords: %w", err)
	}
	if ok, reason := filter.Evaluate(msg.Text, model.Texts(keywords), model.Texts(stopwords)); !ok {
		return reject(reason), nil
	}

	lead, admitted, err := p.record(ctx, msg, settings.IgnoreDuplicates)
	if err != nil {
		return Decision{}, err
	}
	if !admitted {
		return reject(model.ReasonDuplicate), nil
	}

	p.log.Info("lead found",
		"lead_id", lead.ID, "chat_id", lead.ChatID, "sender_id", lead.UserID, "chat", lead.SourceChat)

	target := msg.NotifyTarget
	if target == "" {
		target = settings.NotificationChatID
	}
	dispatchErr := p.dispatch(ctx, model.Notification{
		Target:    target,
		SenderID:  msg.SenderID,
		ChatTitle: msg.ChatTitle,
		ChatID:    msg.ChatID,
		Permalink: p.link(msg),
		Text:      msg.Text,
	})

	return Decision{
		Admitted:    true,
		Reason:      model.ReasonPassed,
		Lead:        lead,
		Target:      target,
		DispatchErr: dispatchErr,
	}, nil
}

// record runs the duplicate gate and appends the lead under one lock so two
// listeners seeing the same repost cannot both admit it.
func (p *Pipeline) record(ctx context.Context, msg Message, ignoreDuplicates bool) (*model.Lead, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ignoreDuplicates {
		dup, err := p.store.HasDuplicate(ctx, msg.Text, p.window)
		if err != nil {
			return nil, false, fmt.Errorf("check duplicate: %w", err)
		}
		if dup {
			return nil, false, nil
		}
	}

	lead := &model.Lead{
		SourceChat: msg.ChatTitle,
		MessageID:  msg.MessageID,
		Text:       msg.Text,
		UserID:     msg.SenderID,
		ChatID:     msg.ChatID,
	}
	if err := p.store.AppendLead(ctx, lead); err != nil {
		return nil, false, fmt.Errorf("append lead: %w", err)
	}
	return lead, true, nil
}

func (p *Pipeline) dispatch(ctx context.Context, n model.Notification) error {
	if p.notifier == nil {
		return nil
	}
	if err := p.notifier.Notify(ctx, n); err != nil {
		status := "error"
		if errors.Is(err, notify.ErrNoTarget) {
			status = "no_target"
		}
		p.metrics.RecordDispatch(status)
		p.log.Error("dispatch lead", "chat_id", n.ChatID, "target", n.Target, "error", err)
		return err
	}
	p.metrics.RecordDispatch("ok")
	return nil
}

func (p *Pipeline) link(msg Message) string {
	if msg.URL != "" {
		return msg.URL
	}
	return Permalink(msg.ChatUsername, msg.ChatID, msg.MessageID)
}

// channelIDOffset separates channel ids from basic group ids in the
// marked Bot API form.
const channelIDOffset = 1_000_000_000_000

// Permalink builds a t.me link to a message. Public chats use their
// username; private ones use the /c/ form with the raw chat id.
func Permalink(username string, chatID int64, messageID int) string {
	if username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", username, messageID)
	}
	id := chatID
	switch {
	case chatID <= -channelIDOffset:
		id = -chatID - channelIDOffset
	case chatID < 0:
		id = -chatID
	}
	return fmt.Sprintf("https://t.me/c/%d/%d", id, messageID)
}

func reject(reason model.Reason) Decision {
	return Decision{Reason: reason}
}

type nopRecorder struct{}

func (nopRecorder) RecordMessageReceived(string) {}
func (nopRecorder) RecordDecision(string)        {}
func (nopRecorder) RecordDispatch(string)        {}
