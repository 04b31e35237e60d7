package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"lead_bot/internal/model"
	"lead_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases intact and serializes writers
	// coming from several listeners.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func wordTable(kind model.WordKind) (string, error) {
	switch kind {
	case model.Keyword:
		return "keywords", nil
	case model.Stopword:
		return "stopwords", nil
	}
	return "", fmt.Errorf("unknown word kind %q", kind)
}

// AddWord inserts a pattern into the keyword or stopword list.
func (s *SQLite) AddWord(ctx context.Context, kind model.WordKind, text string) (bool, error) {
	table, err := wordTable(kind)
	if err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("empty %s", kind)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+table+` (text, created_at) VALUES (?, ?)`,
		text, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetWord returns a single pattern by its ID.
func (s *SQLite) GetWord(ctx context.Context, kind model.WordKind, id int64) (*model.Word, error) {
	table, err := wordTable(kind)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT id, text, created_at FROM `+table+` WHERE id = ?`, id)
	w, err := scanWord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// RemoveWord deletes a pattern by its ID and reports whether it existed.
func (s *SQLite) RemoveWord(ctx context.Context, kind model.WordKind, id int64) (bool, error) {
	table, err := wordTable(kind)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListWords returns all patterns of a kind, newest first or alphabetically.
func (s *SQLite) ListWords(ctx context.Context, kind model.WordKind, order model.SortOrder) ([]model.Word, error) {
	table, err := wordTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at FROM `+table+` ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var words []model.Word
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// SQLite NOCASE folds ASCII only, so alphabetical order is applied here.
	if order == model.SortAlpha {
		slices.SortStableFunc(words, func(a, b model.Word) int {
			return strings.Compare(strings.ToLower(a.Text), strings.ToLower(b.Text))
		})
	}
	return words, nil
}

// ClearWords deletes every pattern of a kind.
func (s *SQLite) ClearWords(ctx context.Context, kind model.WordKind) error {
	table, err := wordTable(kind)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

// AddToBlacklist blocks a sender. It reports false when already blocked.
func (s *SQLite) AddToBlacklist(ctx context.Context, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blacklist (user_id, created_at) VALUES (?, ?)`,
		userID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert blacklist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveFromBlacklist unblocks a sender and reports whether it was blocked.
func (s *SQLite) RemoveFromBlacklist(ctx context.Context, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete blacklist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListBlacklist returns blocked senders, newest first or numerically.
func (s *SQLite) ListBlacklist(ctx context.Context, order model.SortOrder) ([]model.BlacklistEntry, error) {
	query := `SELECT user_id, created_at FROM blacklist ORDER BY created_at DESC, id DESC`
	if order == model.SortAlpha {
		query = `SELECT user_id, created_at FROM blacklist ORDER BY user_id`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query blacklist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.BlacklistEntry
	for rows.Next() {
		var e model.BlacklistEntry
		var created string
		if err := rows.Scan(&e.UserID, &created); err != nil {
			return nil, fmt.Errorf("scan blacklist: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearBlacklist removes every blocked sender.
func (s *SQLite) ClearBlacklist(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blacklist`); err != nil {
		return fmt.Errorf("clear blacklist: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether a sender is blocked.
func (s *SQLite) IsBlacklisted(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blacklist WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return count > 0, nil
}

// GetConfig returns the stored value of key, or its default.
func (s *SQLite) GetConfig(ctx context.Context, key model.ConfigKey) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Defaults[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

// SetConfig stores a value for key.
func (s *SQLite) SetConfig(ctx context.Context, key model.ConfigKey, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		string(key), value,
	)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// ToggleConfig flips a boolean key and returns the new value. Anything other
// than "true" counts as false.
func (s *SQLite) ToggleConfig(ctx context.Context, key model.ConfigKey) (bool, error) {
	if !model.IsToggle(key) {
		return false, fmt.Errorf("config %s is not a toggle", key)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current := model.Defaults[key]
	err = tx.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, string(key)).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("get config %s: %w", key, err)
	}

	next := current != "true"
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		string(key), boolString(next),
	); err != nil {
		return false, fmt.Errorf("set config %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// AllConfig returns every key with its stored value or default.
func (s *SQLite) AllConfig(ctx context.Context) (map[model.ConfigKey]string, error) {
	out := make(map[model.ConfigKey]string, len(model.Defaults))
	for k, v := range model.Defaults {
		out[k] = v
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[model.ConfigKey(k)] = v
	}
	return out, rows.Err()
}

// Settings returns a typed snapshot of the runtime configuration.
func (s *SQLite) Settings(ctx context.Context) (model.Settings, error) {
	raw, err := s.AllConfig(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	return model.SettingsFrom(raw), nil
}

// AppendLead records an admitted message and populates its ID. A zero
// CreatedAt is set to the current time.
func (s *SQLite) AppendLead(ctx context.Context, lead *model.Lead) error {
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	created := lead.CreatedAt.UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (source_chat, message_id, text, user_id, chat_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		lead.SourceChat, lead.MessageID, lead.Text, lead.UserID, lead.ChatID, created,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	lead.ID = id
	lead.CreatedAt, _ = time.Parse(timeLayout, created)
	return nil
}

// RecentLeads returns up to limit leads, newest first.
func (s *SQLite) RecentLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_chat, message_id, text, user_id, chat_id, created_at
		 FROM leads ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var created string
		if err := rows.Scan(&l.ID, &l.SourceChat, &l.MessageID, &l.Text, &l.UserID, &l.ChatID, &created); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		l.CreatedAt, _ = time.Parse(timeLayout, created)
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// HasDuplicate reports whether a lead with exactly the same text was recorded
// within window of now.
func (s *SQLite) HasDuplicate(ctx context.Context, text string, window time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-window).Format(timeLayout)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE text = ? AND created_at > ?`,
		text, cutoff,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return count > 0, nil
}

// CreateSource inserts a new feed source and populates its ID and CreatedAt.
func (s *SQLite) CreateSource(ctx context.Context, src *model.Source) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (title, url, is_active, created_at) VALUES (?, ?, ?, ?)`,
		src.Title, src.URL, boolToInt(src.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	src.ID = id
	src.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetSource returns a single source by its ID.
func (s *SQLite) GetSource(ctx context.Context, id int64) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, url, is_active, last_check_at, created_at FROM sources WHERE id = ?`, id,
	)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return src, err
}

// ListSources returns every feed source.
func (s *SQLite) ListSources(ctx context.Context) ([]model.Source, error) {
	return s.querySources(ctx,
		`SELECT id, title, url, is_active, last_check_at, created_at FROM sources ORDER BY id`)
}

// ListActiveSources returns the sources the scheduler should poll.
func (s *SQLite) ListActiveSources(ctx context.Context) ([]model.Source, error) {
	return s.querySources(ctx,
		`SELECT id, title, url, is_active, last_check_at, created_at
		 FROM sources WHERE is_active = 1 ORDER BY id`)
}

func (s *SQLite) querySources(ctx context.Context, query string) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateSource persists changes to an existing source.
func (s *SQLite) UpdateSource(ctx context.Context, src *model.Source) error {
	var lastCheck *string
	if src.LastCheckAt != nil {
		v := src.LastCheckAt.UTC().Format(timeLayout)
		lastCheck = &v
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET title = ?, url = ?, is_active = ?, last_check_at = ? WHERE id = ?`,
		src.Title, src.URL, boolToInt(src.IsActive), lastCheck, src.ID,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return nil
}

// DeleteSource removes a source and its seen items.
func (s *SQLite) DeleteSource(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_items WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("delete seen_items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return tx.Commit()
}

// MarkSeen records that a feed item has been processed.
func (s *SQLite) MarkSeen(ctx context.Context, sourceID int64, guid string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_items (source_id, guid) VALUES (?, ?)`,
		sourceID, guid,
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// IsSeen checks whether a feed item has already been processed.
func (s *SQLite) IsSeen(ctx context.Context, sourceID int64, guid string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_items WHERE source_id = ? AND guid = ?`,
		sourceID, guid,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanWord(row scannable) (model.Word, error) {
	var w model.Word
	var created string
	if err := row.Scan(&w.ID, &w.Text, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return w, err
		}
		return w, fmt.Errorf("scan word: %w", err)
	}
	w.CreatedAt, _ = time.Parse(timeLayout, created)
	return w, nil
}

func scanSource(row scannable) (*model.Source, error) {
	var src model.Source
	var isActive int
	var lastCheck, created sql.NullString
	err := row.Scan(&src.ID, &src.Title, &src.URL, &isActive, &lastCheck, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	src.IsActive = isActive == 1
	if lastCheck.Valid {
		t, _ := time.Parse(timeLayout, lastCheck.String)
		src.LastCheckAt = &t
	}
	if created.Valid {
		src.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &src, nil
}
