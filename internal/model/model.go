// Package model defines the domain types used across the application.
package model

import "time"

// WordKind selects one of the two pattern lists.
type WordKind string

// Supported word kinds.
const (
	Keyword  WordKind = "keyword"
	Stopword WordKind = "stopword"
)

// SortOrder defines how a list is returned.
type SortOrder int

// Supported sort orders. SortAlpha is case-insensitive lexicographic for
// words and numeric ascending for the blacklist.
const (
	SortRecent SortOrder = iota
	SortAlpha
)

// Word is a keyword or stopword pattern as stored.
type Word struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}

// Texts returns the pattern strings of ws in order.
func Texts(ws []Word) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Text
	}
	return out
}

// BlacklistEntry is a blocked sender.
type BlacklistEntry struct {
	UserID    int64
	CreatedAt time.Time
}

// ChatKind is the closed set of chat types a message can come from.
type ChatKind string

// Supported chat kinds.
const (
	ChatBroadcast ChatKind = "broadcast"
	ChatGroup     ChatKind = "group"
	ChatDialog    ChatKind = "dialog"
)

// Lead is one admitted message. It is append-only history.
type Lead struct {
	ID         int64
	SourceChat string
	MessageID  int
	Text       string
	UserID     int64
	ChatID     int64
	CreatedAt  time.Time
}

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	Target    string
	SenderID  int64
	ChatTitle string
	ChatID    int64
	Permalink string
	Text      string
}

// Source is a polled RSS/Atom feed treated as a broadcast chat.
type Source struct {
	ID          int64
	Title       string
	URL         string
	IsActive    bool
	LastCheckAt *time.Time
	CreatedAt   time.Time
}
