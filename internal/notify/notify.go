// Package notify formats lead notifications and delivers them through a
// rate-limited sender.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"lead_bot/internal/model"
)

// ErrNoTarget is returned when no usable notification chat is configured.
var ErrNoTarget = errors.New("notification chat is not set")

const excerptLimit = 500

// Sender delivers an HTML message to a chat.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, text string) error
}

// Notifier sends lead notifications, at most perSecond per second.
type Notifier struct {
	sender  Sender
	limiter *rate.Limiter
}

// New creates a Notifier. A non-positive perSecond disables throttling.
func New(sender Sender, perSecond int) *Notifier {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = perSecond
	}
	return &Notifier{
		sender:  sender,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Notify delivers n to its target chat.
func (n *Notifier) Notify(ctx context.Context, msg model.Notification) error {
	chatID, err := ParseTarget(msg.Target)
	if err != nil {
		return err
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}
	if err := n.sender.SendHTML(ctx, chatID, Format(msg)); err != nil {
		return fmt.Errorf("send notification to %d: %w", chatID, err)
	}
	return nil
}

// ParseTarget converts a stored chat id into a number.
func ParseTarget(target string) (int64, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, ErrNoTarget
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid chat id %q", ErrNoTarget, target)
	}
	return id, nil
}

// Format renders a notification as Telegram HTML.
func Format(n model.Notification) string {
	title := n.ChatTitle
	if title == "" {
		title = "Unknown"
	}

	var b strings.Builder
	b.WriteString("🔥 <b>New lead</b>\n\n")
	fmt.Fprintf(&b, "Sender ID: <code>%d</code>\n", n.SenderID)
	fmt.Fprintf(&b, "Chat: <b>%s</b>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "Chat ID: <code>%d</code>\n", n.ChatID)
	if n.Permalink != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">Open message</a>\n", html.EscapeString(n.Permalink))
	}
	if text := strings.TrimSpace(n.Text); text != "" {
		b.WriteString("\n<blockquote>")
		b.WriteString(html.EscapeString(Excerpt(text, excerptLimit)))
		b.WriteString("</blockquote>")
	}
	return b.String()
}

// Excerpt cuts s to at most limit runes, appending "..." when cut.
func Excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
