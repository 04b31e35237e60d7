// Package scheduler polls feed sources and runs their new items through the
// lead pipeline as broadcast-channel posts.
package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"lead_bot/internal/fetcher"
	"lead_bot/internal/model"
	"lead_bot/internal/pipeline"
	"lead_bot/internal/storage"
)

// Processor consumes feed items as pipeline messages.
type Processor interface {
	Process(ctx context.Context, msg pipeline.Message) (pipeline.Decision, error)
}

// Recorder receives poll counters.
type Recorder interface {
	RecordFeedPoll(status string)
}

// Scheduler periodically checks feed sources.
type Scheduler struct {
	store   storage.Storage
	fetcher *fetcher.Fetcher
	proc    Processor
	log     *slog.Logger
	metrics Recorder
	tick    time.Duration
}

// New creates a Scheduler with the default HTTP client.
func New(store storage.Storage, proc Processor, log *slog.Logger) *Scheduler {
	return NewWithFetcher(store, fetcher.New(http.DefaultClient), proc, log)
}

// NewWithFetcher creates a Scheduler with a custom fetcher (useful for testing).
func NewWithFetcher(store storage.Storage, f *fetcher.Fetcher, proc Processor, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		fetcher: f,
		proc:    proc,
		log:     log,
		tick:    15 * time.Minute,
	}
}

// SetTickInterval overrides the default 15-minute poll interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// SetRecorder attaches a metrics recorder.
func (s *Scheduler) SetRecorder(r Recorder) {
	s.metrics = r
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	sources, err := s.store.ListActiveSources(ctx)
	if err != nil {
		s.log.Error("list active sources", "error", err)
		return
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}
		s.processSource(ctx, src)
	}
}

func (s *Scheduler) processSource(ctx context.Context, src model.Source) {
	s.log.Debug("checking source", "source_id", src.ID, "title", src.Title)

	feed, err := s.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		s.log.Error("fetch source", "source_id", src.ID, "url", src.URL, "error", err)
		s.record("error")
		s.updateLastCheck(ctx, &src)
		return
	}
	s.record("ok")

	leads := 0
	for _, item := range fetcher.Items(feed) {
		if ctx.Err() != nil {
			return
		}
		seen, err := s.store.IsSeen(ctx, src.ID, item.GUID)
		if err != nil {
			s.log.Error("check seen", "source_id", src.ID, "guid", item.GUID, "error", err)
			continue
		}
		if seen {
			continue
		}

		d, err := s.proc.Process(ctx, pipeline.Message{
			Text:      item.Text,
			ChatKind:  model.ChatBroadcast,
			ChatTitle: src.Title,
			URL:       item.Link,
		})
		if err != nil {
			// Left unseen so the next poll retries it.
			s.log.Error("process item", "source_id", src.ID, "guid", item.GUID, "error", err)
			continue
		}
		if d.Admitted {
			leads++
		}

		if err := s.store.MarkSeen(ctx, src.ID, item.GUID); err != nil {
			s.log.Error("mark seen", "source_id", src.ID, "guid", item.GUID, "error", err)
		}
	}

	if leads > 0 {
		s.log.Info("feed leads found", "source_id", src.ID, "title", src.Title, "count", leads)
	}

	s.updateLastCheck(ctx, &src)
}

func (s *Scheduler) updateLastCheck(ctx context.Context, src *model.Source) {
	now := time.Now().UTC()
	src.LastCheckAt = &now
	if err := s.store.UpdateSource(ctx, src); err != nil {
		s.log.Error("update last check", "source_id", src.ID, "error", err)
	}
}

func (s *Scheduler) record(status string) {
	if s.metrics != nil {
		s.metrics.RecordFeedPoll(status)
	}
}
