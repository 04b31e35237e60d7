// Package supervisor keeps one listener running for every enabled account.
package supervisor

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"lead_bot/internal/accounts"
)

// DefaultInterval is how often the account list is reconciled.
const DefaultInterval = 30 * time.Second

// Runner is a long-running account listener.
type Runner interface {
	Run(ctx context.Context) error
}

// Factory builds a Runner for an account.
type Factory func(acc accounts.Account) Runner

// Source lists the accounts that should be running.
type Source interface {
	Enabled() ([]accounts.Account, error)
}

// Gauge receives the number of running listeners.
type Gauge interface {
	SetActiveListeners(n int)
}

type worker struct {
	account accounts.Account
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func (w *worker) finished() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Supervisor starts, stops and restarts listeners to match the enabled
// accounts.
type Supervisor struct {
	src      Source
	factory  Factory
	log      *slog.Logger
	gauge    Gauge
	interval time.Duration

	mu      sync.Mutex
	workers map[string]*worker
}

// New creates a Supervisor. gauge may be nil.
func New(src Source, factory Factory, gauge Gauge, log *slog.Logger) *Supervisor {
	return &Supervisor{
		src:      src,
		factory:  factory,
		log:      log,
		gauge:    gauge,
		interval: DefaultInterval,
		workers:  make(map[string]*worker),
	}
}

// SetInterval overrides DefaultInterval.
func (s *Supervisor) SetInterval(d time.Duration) {
	s.interval = d
}

// Run reconciles immediately and then on every tick, blocking until ctx is
// cancelled. All listeners are stopped before it returns.
func (s *Supervisor) Run(ctx context.Context) {
	s.Reconcile(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-ticker.C:
			s.Reconcile(ctx)
		}
	}
}

// Reconcile brings the running listeners in line with the account list.
// Crashed listeners are restarted. Accounts whose settings changed are
// restarted with the new settings.
func (s *Supervisor) Reconcile(ctx context.Context) {
	enabled, err := s.src.Enabled()
	if err != nil {
		s.log.Error("list accounts", "error", err)
		return
	}
	want := make(map[string]accounts.Account, len(enabled))
	for _, acc := range enabled {
		want[acc.ID] = acc
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range s.workers {
		acc, ok := want[id]
		switch {
		case w.finished():
			s.log.Warn("listener exited", "account", id, "error", w.err)
			delete(s.workers, id)
		case !ok:
			s.log.Info("stopping listener", "account", id)
			w.cancel()
			<-w.done
			delete(s.workers, id)
		case acc != w.account:
			s.log.Info("restarting listener with new settings", "account", id)
			w.cancel()
			<-w.done
			delete(s.workers, id)
		}
	}

	for id, acc := range want {
		if _, running := s.workers[id]; running {
			continue
		}
		s.start(ctx, acc)
	}

	if s.gauge != nil {
		s.gauge.SetActiveListeners(len(s.workers))
	}
}

// Running returns the ids of accounts with a live listener.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, w := range s.workers {
		if !w.finished() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (s *Supervisor) start(ctx context.Context, acc accounts.Account) {
	runner := s.factory(acc)
	wctx, cancel := context.WithCancel(ctx)
	w := &worker{
		account: acc,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.workers[acc.ID] = w

	s.log.Info("starting listener", "account", acc.ID)
	go func() {
		defer close(w.done)
		w.err = runner.Run(wctx)
	}()
}

func (s *Supervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range s.workers {
		w.cancel()
		<-w.done
		delete(s.workers, id)
	}
	if s.gauge != nil {
		s.gauge.SetActiveListeners(0)
	}
}
