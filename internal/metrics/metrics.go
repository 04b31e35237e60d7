// Package metrics exposes Prometheus counters for the lead pipeline and an
// HTTP server for scraping them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_bot_messages_received_total",
		Help: "Total number of inbound messages by chat kind",
	}, []string{"chat_kind"})

	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_bot_decisions_total",
		Help: "Total number of pipeline decisions by reason",
	}, []string{"reason"})

	dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_bot_dispatches_total",
		Help: "Total number of notification dispatches by status",
	}, []string{"status"})

	feedPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_bot_feed_polls_total",
		Help: "Total number of feed source polls by status",
	}, []string{"status"})

	activeListeners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lead_bot_active_listeners",
		Help: "Number of running account listeners",
	})
)

// Metrics records counters. The zero value is ready to use.
type Metrics struct{}

// New creates a new metrics recorder.
func New() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived counts an inbound message.
func (m *Metrics) RecordMessageReceived(chatKind string) {
	messagesReceived.WithLabelValues(chatKind).Inc()
}

// RecordDecision counts a pipeline outcome.
func (m *Metrics) RecordDecision(reason string) {
	decisions.WithLabelValues(reason).Inc()
}

// RecordDispatch counts a notification attempt ("ok", "no_target" or "error").
func (m *Metrics) RecordDispatch(status string) {
	dispatches.WithLabelValues(status).Inc()
}

// RecordFeedPoll counts a feed fetch ("ok" or "error").
func (m *Metrics) RecordFeedPoll(status string) {
	feedPolls.WithLabelValues(status).Inc()
}

// SetActiveListeners sets the number of running listeners.
func (m *Metrics) SetActiveListeners(n int) {
	activeListeners.Set(float64(n))
}

// Handler returns the router serving /metrics and /health.
func Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	return router
}

// Serve runs the metrics server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
