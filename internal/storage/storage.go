// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"lead_bot/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	// AddWord inserts a trimmed pattern. It reports false when the pattern
	// already exists.
	AddWord(ctx context.Context, kind model.WordKind, text string) (bool, error)
	GetWord(ctx context.Context, kind model.WordKind, id int64) (*model.Word, error)
	RemoveWord(ctx context.Context, kind model.WordKind, id int64) (bool, error)
	ListWords(ctx context.Context, kind model.WordKind, order model.SortOrder) ([]model.Word, error)
	ClearWords(ctx context.Context, kind model.WordKind) error

	AddToBlacklist(ctx context.Context, userID int64) (bool, error)
	RemoveFromBlacklist(ctx context.Context, userID int64) (bool, error)
	ListBlacklist(ctx context.Context, order model.SortOrder) ([]model.BlacklistEntry, error)
	ClearBlacklist(ctx context.Context) error
	IsBlacklisted(ctx context.Context, userID int64) (bool, error)

	GetConfig(ctx context.Context, key model.ConfigKey) (string, error)
	SetConfig(ctx context.Context, key model.ConfigKey, value string) error
	ToggleConfig(ctx context.Context, key model.ConfigKey) (bool, error)
	AllConfig(ctx context.Context) (map[model.ConfigKey]string, error)
	Settings(ctx context.Context) (model.Settings, error)

	AppendLead(ctx context.Context, lead *model.Lead) error
	RecentLeads(ctx context.Context, limit int) ([]model.Lead, error)
	HasDuplicate(ctx context.Context, text string, window time.Duration) (bool, error)

	CreateSource(ctx context.Context, src *model.Source) error
	GetSource(ctx context.Context, id int64) (*model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	ListActiveSources(ctx context.Context) ([]model.Source, error)
	UpdateSource(ctx context.Context, src *model.Source) error
	DeleteSource(ctx context.Context, id int64) error

	MarkSeen(ctx context.Context, sourceID int64, guid string) error
	IsSeen(ctx context.Context, sourceID int64, guid string) (bool, error)

	Close() error
}
