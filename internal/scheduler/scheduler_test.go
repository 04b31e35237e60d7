package scheduler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lead_bot/internal/fetcher"
	"lead_bot/internal/model"
	"lead_bot/internal/pipeline"
	"lead_bot/internal/storage"
)

type mockNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (m *mockNotifier) Notify(_ context.Context, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) getSent() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]model.Notification, len(m.sent))
	copy(cp, m.sent)
	return cp
}

type mockHTTP struct {
	body  string
	calls int
}

func (m *mockHTTP) Do(_ *http.Request) (*http.Response, error) {
	m.calls++
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

type pollRecorder struct {
	statuses []string
}

func (r *pollRecorder) RecordFeedPoll(status string) {
	r.statuses = append(r.statuses, status)
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/sample.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore returns a store with the pipeline switched on and the given
// keywords.
func newTestStore(t *testing.T, keywords ...string) *storage.SQLite {
	t.Helper()
	ctx := context.Background()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.SetConfig(ctx, model.KeyWorkingStatus, "true"); err != nil {
		t.Fatalf("set working: %v", err)
	}
	if err := s.SetConfig(ctx, model.KeyNotificationChatID, "-100500"); err != nil {
		t.Fatalf("set target: %v", err)
	}
	for _, k := range keywords {
		if _, err := s.AddWord(ctx, model.Keyword, k); err != nil {
			t.Fatalf("add keyword: %v", err)
		}
	}
	return s
}

func addSource(t *testing.T, store *storage.SQLite, active bool) model.Source {
	t.Helper()
	src := model.Source{Title: "Marketplace", URL: "https://example.com/rss", IsActive: active}
	if err := store.CreateSource(context.Background(), &src); err != nil {
		t.Fatalf("create source: %v", err)
	}
	return src
}

func newScheduler(store *storage.SQLite, body string, n *mockNotifier) (*Scheduler, *mockHTTP) {
	httpClient := &mockHTTP{body: body}
	p := pipeline.New(store, n, testLogger())
	return NewWithFetcher(store, fetcher.New(httpClient), p, testLogger()), httpClient
}

func TestSchedulerSendsMatchingItems(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "bike")
	addSource(t, store, true)

	n := &mockNotifier{}
	sched, _ := newScheduler(store, loadFixture(t), n)
	sched.checkAll(ctx)

	want := []model.Notification{{
		Target:    "-100500",
		ChatTitle: "Marketplace",
		Permalink: "https://example.com/posts/1",
		Text:      "Looking to buy a used bike\n\nNeed a bike for the city.\nBudget 200.",
	}}
	if diff := cmp.Diff(want, n.getSent()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}

	leads, err := store.RecentLeads(ctx, 10)
	if err != nil {
		t.Fatalf("recent leads: %v", err)
	}
	if len(leads) != 1 || leads[0].SourceChat != "Marketplace" {
		t.Errorf("leads = %+v", leads)
	}
}

func TestSchedulerMarksEveryItemSeen(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "bike")
	src := addSource(t, store, true)

	n := &mockNotifier{}
	sched, _ := newScheduler(store, loadFixture(t), n)
	sched.checkAll(ctx)
	sched.checkAll(ctx)

	if got := len(n.getSent()); got != 1 {
		t.Errorf("notifications = %d, want 1", got)
	}
	for _, guid := range []string{"post-1", "post-2"} {
		seen, err := store.IsSeen(ctx, src.ID, guid)
		if err != nil {
			t.Fatalf("is seen: %v", err)
		}
		if !seen {
			t.Errorf("%s should be marked seen", guid)
		}
	}
}

func TestSchedulerRespectsChannelToggle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "bike", "sofa")
	if err := store.SetConfig(ctx, model.KeyChannelsEnabled, "false"); err != nil {
		t.Fatalf("set config: %v", err)
	}
	addSource(t, store, true)

	n := &mockNotifier{}
	sched, _ := newScheduler(store, loadFixture(t), n)
	sched.checkAll(ctx)

	if got := len(n.getSent()); got != 0 {
		t.Errorf("notifications = %d, want 0", got)
	}
}

func TestSchedulerUpdatesLastCheck(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	src := addSource(t, store, true)

	before := time.Now().UTC().Add(-time.Second)

	sched, _ := newScheduler(store, loadFixture(t), &mockNotifier{})
	sched.checkAll(ctx)

	updated, err := store.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if updated.LastCheckAt == nil {
		t.Fatal("expected LastCheckAt to be set")
	}
	if updated.LastCheckAt.Before(before) {
		t.Errorf("LastCheckAt %v is before test start %v", updated.LastCheckAt, before)
	}
}

func TestSchedulerFetchError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "bike")
	src := addSource(t, store, true)

	n := &mockNotifier{}
	sched, _ := newScheduler(store, "not xml", n)
	rec := &pollRecorder{}
	sched.SetRecorder(rec)
	sched.checkAll(ctx)

	if got := len(n.getSent()); got != 0 {
		t.Errorf("notifications = %d, want 0", got)
	}
	if diff := cmp.Diff([]string{"error"}, rec.statuses); diff != "" {
		t.Errorf("poll statuses mismatch (-want +got):\n%s", diff)
	}

	updated, err := store.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if updated.LastCheckAt == nil {
		t.Error("expected LastCheckAt to be set even after fetch error")
	}
}

func TestSchedulerInactiveSourceSkipped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "bike")
	addSource(t, store, false)

	sched, httpClient := newScheduler(store, "should not be fetched", &mockNotifier{})
	sched.checkAll(ctx)

	if httpClient.calls != 0 {
		t.Errorf("http calls = %d, want 0", httpClient.calls)
	}
}

func TestSchedulerCancelledContext(t *testing.T) {
	store := newTestStore(t, "bike")
	addSource(t, store, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := &mockNotifier{}
	sched, _ := newScheduler(store, loadFixture(t), n)
	sched.checkAll(ctx)

	if got := len(n.getSent()); got != 0 {
		t.Errorf("expected no notifications when context cancelled, got %d", got)
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	sched, _ := newScheduler(store, "<rss><channel></channel></rss>", &mockNotifier{})
	sched.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
