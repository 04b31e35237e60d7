package bot

import (
	"fmt"
	"strconv"
	"strings"

	"lead_bot/internal/accounts"
	"lead_bot/internal/model"
)

const (
	statusActive = "active"
	statusPaused = "paused"

	pageSize       = 10
	historyLimit   = 10
	historyExcerpt = 50
	messageLimit   = 4096
)

var toggleLabels = map[model.ConfigKey]string{
	model.KeyWorkingStatus:    "Parser running",
	model.KeyGroupsEnabled:    "Groups",
	model.KeyChannelsEnabled:  "Channels",
	model.KeyDialogsEnabled:   "Private dialogs",
	model.KeyIgnoreDuplicates: "Ignore duplicates",
}

func kindTitle(kind model.WordKind) string {
	if kind == model.Stopword {
		return "Stopwords"
	}
	return "Keywords"
}

func orderLabel(order model.SortOrder) string {
	if order == model.SortAlpha {
		return "alphabetical"
	}
	return "newest first"
}

func onOff(v bool) string {
	if v {
		return "🟢"
	}
	return "🔴"
}

func toggleValues(s model.Settings) map[model.ConfigKey]bool {
	return map[model.ConfigKey]bool{
		model.KeyWorkingStatus:    s.Working,
		model.KeyGroupsEnabled:    s.GroupsEnabled,
		model.KeyChannelsEnabled:  s.ChannelsEnabled,
		model.KeyDialogsEnabled:   s.DialogsEnabled,
		model.KeyIgnoreDuplicates: s.IgnoreDuplicates,
	}
}

// Truncate cuts s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// pageBounds clamps page to the available pages and returns the slice bounds
// for it together with the page count.
func pageBounds(total, page int) (start, end, clamped, pages int) {
	pages = (total + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	clamped = min(max(page, 0), pages-1)
	start = clamped * pageSize
	end = min(start+pageSize, total)
	return start, end, clamped, pages
}

// FormatSettings renders the parser settings screen.
func FormatSettings(s model.Settings) string {
	var b strings.Builder
	b.WriteString("Parser settings\n\n")
	values := toggleValues(s)
	for _, k := range model.ToggleKeys {
		fmt.Fprintf(&b, "%s %s\n", onOff(values[k]), toggleLabels[k])
	}
	target := s.NotificationChatID
	if target == "" {
		target = "not set"
	}
	fmt.Fprintf(&b, "\nNotification chat: %s", target)
	return b.String()
}

// FormatWordPage renders one page of a keyword or stopword list.
func FormatWordPage(kind model.WordKind, words []model.Word, page int, order model.SortOrder) string {
	if len(words) == 0 {
		return fmt.Sprintf("%s: the list is empty.", kindTitle(kind))
	}
	start, end, page, pages := pageBounds(len(words), page)
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d, %s, page %d/%d\n\n", kindTitle(kind), len(words), orderLabel(order), page+1, pages)
	for i, w := range words[start:end] {
		fmt.Fprintf(&b, "%d. %s\n", start+i+1, w.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatBlacklistPage renders one page of the blacklist.
func FormatBlacklistPage(entries []model.BlacklistEntry, page int, order model.SortOrder) string {
	if len(entries) == 0 {
		return "Blacklist: the list is empty."
	}
	start, end, page, pages := pageBounds(len(entries), page)
	label := "newest first"
	if order == model.SortAlpha {
		label = "by ID"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Blacklist: %d, %s, page %d/%d\n\n", len(entries), label, page+1, pages)
	for i, e := range entries[start:end] {
		fmt.Fprintf(&b, "%d. %d\n", start+i+1, e.UserID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHistory renders the most recent leads.
func FormatHistory(leads []model.Lead) string {
	if len(leads) == 0 {
		return "No leads yet."
	}
	var b strings.Builder
	b.WriteString("Recent leads:\n")
	for i, l := range leads {
		chat := l.SourceChat
		if chat == "" {
			chat = "Unknown"
		}
		text := strings.Join(strings.Fields(l.Text), " ")
		fmt.Fprintf(&b, "\n%d. %s | %s\n   %s\n", i+1, l.CreatedAt.Format("2006-01-02 15:04"), chat, Truncate(text, historyExcerpt))
	}
	return b.String()
}

// FormatSourceList formats the feed sources for display.
func FormatSourceList(sources []model.Source) string {
	if len(sources) == 0 {
		return "No sources yet. Use /addsource <url> to add one."
	}
	var b strings.Builder
	b.WriteString("Feed sources:\n")
	for _, s := range sources {
		status := statusActive
		if !s.IsActive {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\n#%d %s [%s]\n   %s\n", s.ID, s.Title, status, s.URL)
		if s.LastCheckAt != nil {
			fmt.Fprintf(&b, "   last check: %s\n", s.LastCheckAt.Format("2006-01-02 15:04 UTC"))
		}
	}
	return b.String()
}

// FormatAccounts formats the monitored accounts.
func FormatAccounts(accs []accounts.Account, currentID string) string {
	if len(accs) == 0 {
		return "No accounts yet. Log in with the session tool to add one."
	}
	var b strings.Builder
	b.WriteString("Accounts:\n")
	for _, a := range accs {
		fmt.Fprintf(&b, "\n%s %s", onOff(a.Enabled), accountLabel(a))
		if a.ID == currentID {
			b.WriteString(" (current)")
		}
		if a.NotifyChatID != "" {
			fmt.Fprintf(&b, "\n   leads to %s", a.NotifyChatID)
		}
	}
	b.WriteString("\n\nChanges apply on the next listener check.")
	return b.String()
}

func accountLabel(a accounts.Account) string {
	label := a.Phone
	if label == "" {
		label = a.ID
	}
	if a.Username != "" {
		label += " @" + a.Username
	}
	return label
}

func blacklistLines(entries []model.BlacklistEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = strconv.FormatInt(e.UserID, 10)
	}
	return out
}
