// Package dispatch implements the long-running send loop: claim due
// queue items, render them just-in-time, transmit, and record the
// outcome, tripping a per-campaign circuit breaker on repeated
// generation failures within a batch.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/aigen"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/pkg/timeutil"
	"github.com/ignite/sparkpost-monitor/internal/render"
	"github.com/ignite/sparkpost-monitor/internal/store"
	"github.com/ignite/sparkpost-monitor/internal/transmit"
)

// Config controls the dispatcher's polling cadence, batch shape, and
// the working-hours window it shares with the launch planner.
type Config struct {
	PollInterval        time.Duration
	BatchSize           int
	CircuitThreshold    int
	Timezone            string
	WorkStart           int
	WorkEnd             int
	DisableWorkingHours bool
}

// DefaultConfig matches the defaults the original dispatcher shipped with.
func DefaultConfig() Config {
	return Config{
		PollInterval:     60 * time.Second,
		BatchSize:        20,
		CircuitThreshold: 10,
		Timezone:         "America/Los_Angeles",
		WorkStart:        9,
		WorkEnd:          17,
	}
}

// Worker is a long-running process that polls the store for due items
// and sends them, following the teacher's Start/Stop/run pattern.
type Worker struct {
	cfg       Config
	store     store.Store
	generator aigen.Generator
	renderer  *render.Renderer
	sender    transmit.Client

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWorker builds a dispatcher Worker.
func NewWorker(cfg Config, s store.Store, gen aigen.Generator, renderer *render.Renderer, sender transmit.Client) *Worker {
	return &Worker{cfg: cfg, store: s, generator: gen, renderer: renderer, sender: sender}
}

// Start begins the poll loop in a background goroutine. Calling Start
// on an already-running worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the poll loop to exit and waits for it to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	loc, err := timeutil.LoadLocation(w.cfg.Timezone)
	if err != nil {
		logger.Error("dispatcher: failed to load timezone, working-hours gate falls back to UTC", "timezone", w.cfg.Timezone, "error", err.Error())
		loc = time.UTC
	}

	logger.Info("dispatcher starting", "poll_interval", w.cfg.PollInterval.String(), "batch_size", w.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			logger.Info("dispatcher stopping: context cancelled")
			return
		case <-w.stopCh:
			logger.Info("dispatcher stopping: stop requested")
			return
		case <-ticker.C:
			if !w.cfg.DisableWorkingHours && !timeutil.InWorkingWindow(time.Now(), loc, w.cfg.WorkStart, w.cfg.WorkEnd, true) {
				continue
			}
			if err := w.ProcessBatch(ctx); err != nil {
				logger.Error("dispatcher batch failed", "error", err.Error())
			}
		}
	}
}
