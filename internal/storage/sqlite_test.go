package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"lead_bot/internal/model"
)

var ignoreSourceTS = cmpopts.IgnoreFields(model.Source{}, "CreatedAt", "LastCheckAt")
var ignoreLeadTS = cmpopts.IgnoreFields(model.Lead{}, "ID", "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func wordTexts(t *testing.T, s *SQLite, kind model.WordKind, order model.SortOrder) []string {
	t.Helper()
	words, err := s.ListWords(context.Background(), kind, order)
	if err != nil {
		t.Fatalf("list %s: %v", kind, err)
	}
	return model.Texts(words)
}

func TestAddWord(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		kind      model.WordKind
		inputs    []string
		wantAdded []bool
		wantList  []string
	}{
		{
			name:      "keywords trimmed and listed newest first",
			kind:      model.Keyword,
			inputs:    []string{"  sell ", "buy", "iphone+pro"},
			wantAdded: []bool{true, true, true},
			wantList:  []string{"iphone+pro", "buy", "sell"},
		},
		{
			name:      "duplicate keyword rejected",
			kind:      model.Keyword,
			inputs:    []string{"sell", "sell", " sell"},
			wantAdded: []bool{true, false, false},
			wantList:  []string{"sell"},
		},
		{
			name:      "stopwords kept separately",
			kind:      model.Stopword,
			inputs:    []string{"scam", "_free_"},
			wantAdded: []bool{true, true},
			wantList:  []string{"_free_", "scam"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestDB(t)
			var added []bool
			for _, in := range tt.inputs {
				ok, err := s.AddWord(ctx, tt.kind, in)
				if err != nil {
					t.Fatalf("add %q: %v", in, err)
				}
				added = append(added, ok)
			}
			if diff := cmp.Diff(tt.wantAdded, added); diff != "" {
				t.Errorf("added mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantList, wordTexts(t, s, tt.kind, model.SortRecent)); diff != "" {
				t.Errorf("list mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddWordRejectsBlank(t *testing.T) {
	s := newTestDB(t)
	if _, err := s.AddWord(context.Background(), model.Keyword, "   "); err == nil {
		t.Fatal("expected error for blank keyword")
	}
}

func TestWordListsIndependent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.AddWord(ctx, model.Keyword, "sell"); err != nil {
		t.Fatalf("add keyword: %v", err)
	}
	ok, err := s.AddWord(ctx, model.Stopword, "sell")
	if err != nil {
		t.Fatalf("add stopword: %v", err)
	}
	if !ok {
		t.Error("same text should be addable to both lists")
	}
	if err := s.ClearWords(ctx, model.Keyword); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if got := wordTexts(t, s, model.Keyword, model.SortRecent); len(got) != 0 {
		t.Errorf("keywords after clear = %v, want empty", got)
	}
	if diff := cmp.Diff([]string{"sell"}, wordTexts(t, s, model.Stopword, model.SortRecent)); diff != "" {
		t.Errorf("stopwords mismatch (-want +got):\n%s", diff)
	}
}

func TestListWordsAlpha(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, w := range []string{"beta", "Alpha", "яблоко", "Арбуз", "gamma"} {
		if _, err := s.AddWord(ctx, model.Keyword, w); err != nil {
			t.Fatalf("add %q: %v", w, err)
		}
	}

	want := []string{"Alpha", "beta", "gamma", "Арбуз", "яблоко"}
	if diff := cmp.Diff(want, wordTexts(t, s, model.Keyword, model.SortAlpha)); diff != "" {
		t.Errorf("alpha order mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRemoveWord(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.AddWord(ctx, model.Keyword, "sell"); err != nil {
		t.Fatalf("add: %v", err)
	}
	words, err := s.ListWords(ctx, model.Keyword, model.SortRecent)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	id := words[0].ID

	got, err := s.GetWord(ctx, model.Keyword, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "sell" {
		t.Errorf("Text = %q, want %q", got.Text, "sell")
	}

	removed, err := s.RemoveWord(ctx, model.Keyword, id)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Error("expected removed = true")
	}

	removed, err = s.RemoveWord(ctx, model.Keyword, id)
	if err != nil {
		t.Fatalf("remove again: %v", err)
	}
	if removed {
		t.Error("second remove should report false")
	}

	if _, err := s.GetWord(ctx, model.Keyword, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetWord after remove err = %v, want ErrNotFound", err)
	}
}

func TestBlacklist(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, id := range []int64{300, 100, 200} {
		ok, err := s.AddToBlacklist(ctx, id)
		if err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
		if !ok {
			t.Errorf("add %d: expected true", id)
		}
	}
	ok, err := s.AddToBlacklist(ctx, 100)
	if err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	if ok {
		t.Error("duplicate add should report false")
	}

	ids := func(order model.SortOrder) []int64 {
		entries, err := s.ListBlacklist(ctx, order)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var out []int64
		for _, e := range entries {
			out = append(out, e.UserID)
		}
		return out
	}

	if diff := cmp.Diff([]int64{200, 100, 300}, ids(model.SortRecent)); diff != "" {
		t.Errorf("recent order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{100, 200, 300}, ids(model.SortAlpha)); diff != "" {
		t.Errorf("numeric order mismatch (-want +got):\n%s", diff)
	}

	blocked, err := s.IsBlacklisted(ctx, 200)
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if !blocked {
		t.Error("200 should be blacklisted")
	}

	removed, err := s.RemoveFromBlacklist(ctx, 200)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Error("expected removed = true")
	}
	blocked, err = s.IsBlacklisted(ctx, 200)
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if blocked {
		t.Error("200 should no longer be blacklisted")
	}

	if err := s.ClearBlacklist(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := ids(model.SortRecent); len(got) != 0 {
		t.Errorf("after clear = %v, want empty", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	got, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	want := model.Settings{
		Working:          false,
		GroupsEnabled:    true,
		ChannelsEnabled:  true,
		DialogsEnabled:   false,
		IgnoreDuplicates: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Settings() mismatch (-want +got):\n%s", diff)
	}
}

func TestToggleConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		key     model.ConfigKey
		initial string
		want    []bool
	}{
		{name: "false flips to true", key: model.KeyWorkingStatus, initial: "false", want: []bool{true, false, true}},
		{name: "true flips to false", key: model.KeyGroupsEnabled, initial: "true", want: []bool{false, true}},
		{name: "garbage is false", key: model.KeyDialogsEnabled, initial: "yes", want: []bool{true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestDB(t)
			if err := s.SetConfig(ctx, tt.key, tt.initial); err != nil {
				t.Fatalf("set: %v", err)
			}
			var got []bool
			for range tt.want {
				v, err := s.ToggleConfig(ctx, tt.key)
				if err != nil {
					t.Fatalf("toggle: %v", err)
				}
				got = append(got, v)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("toggle sequence mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToggleConfigRejectsNonToggle(t *testing.T) {
	s := newTestDB(t)
	if _, err := s.ToggleConfig(context.Background(), model.KeyNotificationChatID); err == nil {
		t.Fatal("expected error toggling notification_chat_id")
	}
}

func TestGetConfigFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM config`); err != nil {
		t.Fatalf("delete config: %v", err)
	}

	got, err := s.GetConfig(ctx, model.KeyIgnoreDuplicates)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "true" {
		t.Errorf("GetConfig = %q, want default %q", got, "true")
	}

	v, err := s.ToggleConfig(ctx, model.KeyIgnoreDuplicates)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if v {
		t.Error("toggling a missing key should start from its default")
	}
}

func TestSetConfigNotificationTarget(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.SetConfig(ctx, model.KeyNotificationChatID, "-1001234"); err != nil {
		t.Fatalf("set: %v", err)
	}
	st, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if st.NotificationChatID != "-1001234" {
		t.Errorf("NotificationChatID = %q, want %q", st.NotificationChatID, "-1001234")
	}
}

func TestLeads(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	old := model.Lead{
		SourceChat: "Old Chat",
		MessageID:  1,
		Text:       "selling sofa",
		UserID:     10,
		ChatID:     -100,
		CreatedAt:  time.Now().UTC().Add(-25 * time.Hour),
	}
	fresh := model.Lead{
		SourceChat: "Fresh Chat",
		MessageID:  2,
		Text:       "buying iphone",
		UserID:     11,
		ChatID:     -200,
	}
	for _, l := range []*model.Lead{&old, &fresh} {
		if err := s.AppendLead(ctx, l); err != nil {
			t.Fatalf("append: %v", err)
		}
		if l.ID == 0 {
			t.Fatal("expected non-zero ID")
		}
	}
	if fresh.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := s.RecentLeads(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if diff := cmp.Diff([]model.Lead{fresh, old}, got, ignoreLeadTS); diff != "" {
		t.Errorf("RecentLeads mismatch (-want +got):\n%s", diff)
	}

	limited, err := s.RecentLeads(ctx, 1)
	if err != nil {
		t.Fatalf("recent limited: %v", err)
	}
	if len(limited) != 1 || limited[0].Text != "buying iphone" {
		t.Errorf("RecentLeads(1) = %+v", limited)
	}
}

func TestHasDuplicate(t *testing.T) {
	ctx := context.Background()
	window := 24 * time.Hour

	tests := []struct {
		name  string
		age   time.Duration
		saved string
		query string
		want  bool
	}{
		{name: "same text inside window", age: time.Hour, saved: "sell sofa", query: "sell sofa", want: true},
		{name: "same text outside window", age: 25 * time.Hour, saved: "sell sofa", query: "sell sofa", want: false},
		{name: "different case is not a duplicate", age: time.Hour, saved: "sell sofa", query: "Sell sofa", want: false},
		{name: "different whitespace is not a duplicate", age: time.Hour, saved: "sell sofa", query: "sell sofa ", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestDB(t)
			lead := model.Lead{
				SourceChat: "Chat",
				MessageID:  1,
				Text:       tt.saved,
				CreatedAt:  time.Now().UTC().Add(-tt.age),
			}
			if err := s.AppendLead(ctx, &lead); err != nil {
				t.Fatalf("append: %v", err)
			}
			got, err := s.HasDuplicate(ctx, tt.query, window)
			if err != nil {
				t.Fatalf("has duplicate: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasDuplicate(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestSourceCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	src := model.Source{Title: "Jobs", URL: "https://example.com/rss", IsActive: true}
	if err := s.CreateSource(ctx, &src); err != nil {
		t.Fatalf("create: %v", err)
	}
	if src.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	got, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(src, *got, ignoreSourceTS); diff != "" {
		t.Errorf("GetSource mismatch (-want +got):\n%s", diff)
	}

	dup := model.Source{Title: "Dup", URL: "https://example.com/rss", IsActive: true}
	if err := s.CreateSource(ctx, &dup); err == nil {
		t.Error("expected unique URL violation")
	}

	now := time.Now().UTC().Truncate(time.Second)
	src.IsActive = false
	src.LastCheckAt = &now
	if err := s.UpdateSource(ctx, &src); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.IsActive {
		t.Error("expected inactive source")
	}
	if got.LastCheckAt == nil || !got.LastCheckAt.Equal(now) {
		t.Errorf("LastCheckAt = %v, want %v", got.LastCheckAt, now)
	}

	active, err := s.ListActiveSources(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active sources = %d, want 0", len(active))
	}
	all, err := s.ListSources(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("sources = %d, want 1", len(all))
	}

	if err := s.MarkSeen(ctx, src.ID, "guid-1"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if err := s.DeleteSource(ctx, src.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSource(ctx, src.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSource after delete err = %v, want ErrNotFound", err)
	}
	seen, err := s.IsSeen(ctx, src.ID, "guid-1")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if seen {
		t.Error("seen items should be removed with the source")
	}
}

func TestSeenItems(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	seen, err := s.IsSeen(ctx, 1, "guid-1")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if seen {
		t.Error("expected unseen")
	}

	for range 2 {
		if err := s.MarkSeen(ctx, 1, "guid-1"); err != nil {
			t.Fatalf("mark seen: %v", err)
		}
	}

	seen, err = s.IsSeen(ctx, 1, "guid-1")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if !seen {
		t.Error("expected seen")
	}

	seen, err = s.IsSeen(ctx, 2, "guid-1")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if seen {
		t.Error("seen items are scoped per source")
	}
}
