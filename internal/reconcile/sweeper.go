// Package reconcile runs the background sweep that keeps metadata honest:
// any file record whose remote object has disappeared (deleted out-of-band,
// lost to drift) is pruned so listings never advertise downloads that would
// 404.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/digiscribe/backend/internal/metastore"
	"github.com/digiscribe/backend/internal/models"
	"github.com/digiscribe/backend/internal/remote"
)

var (
	sweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digiscribe_reconcile_runs_total",
		Help: "Reconciliation sweep executions by outcome.",
	}, []string{"outcome"})

	sweepPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digiscribe_reconcile_pruned_total",
		Help: "File records removed because their remote object is gone.",
	})
)

// Defaults chosen to keep per-tick FTP load bounded.
const (
	DefaultInterval  = time.Minute
	DefaultBatchSize = 20
)

// Result summarizes one sweep pass.
type Result struct {
	Checked int `json:"checked"`
	Removed int `json:"removed"`
}

// Sweeper periodically verifies a rotating window of file records against the
// remote store.
type Sweeper struct {
	files     metastore.FileStore
	remote    remote.Client
	interval  time.Duration
	batchSize int
	log       zerolog.Logger

	running sync.Mutex // single-flight: ticker fires and manual triggers may overlap
	cursor  string     // last file id verified, "" restarts from the beginning
}

// NewSweeper builds a sweeper with the default cadence and batch size.
func NewSweeper(files metastore.FileStore, rc remote.Client, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		files:     files,
		remote:    rc,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		log:       log.With().Str("component", "reconcile").Logger(),
	}
}

// SetInterval overrides the tick cadence. Call before Start.
func (s *Sweeper) SetInterval(d time.Duration) { s.interval = d }

// SetBatchSize overrides how many records one pass verifies.
func (s *Sweeper) SetBatchSize(n int) { s.batchSize = n }

// Start runs the sweep loop until ctx is canceled. Blocking; run it in its
// own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Int("batch", s.batchSize).Msg("reconciliation sweep started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reconciliation sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				s.log.Error().Err(err).Msg("sweep pass failed")
			}
		}
	}
}

// ErrAlreadyRunning means a pass was requested while another was in flight.
var ErrAlreadyRunning = errors.New("reconciliation sweep already running")

// RunOnce verifies the next batch of records. Concurrent calls do not stack:
// a second caller gets ErrAlreadyRunning instead of queueing behind the first.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	if !s.running.TryLock() {
		sweepRuns.WithLabelValues("skipped").Inc()
		return Result{}, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	batch, err := s.files.FileBatch(ctx, s.cursor, s.batchSize)
	if err != nil {
		sweepRuns.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if len(batch) == 0 {
		// End of the id space; next pass restarts from the top.
		s.cursor = ""
		sweepRuns.WithLabelValues("success").Inc()
		return Result{}, nil
	}

	var res Result
	for _, f := range batch {
		s.cursor = f.ID
		if f.SourceType == models.SourceURL {
			// No remote object of ours to verify.
			continue
		}
		res.Checked++

		ok, err := s.remote.Exists(ctx, f.RemotePath())
		if err != nil {
			// Transport trouble proves nothing about the object. Leave the
			// record alone rather than prune on a flaky connection.
			s.log.Warn().Str("file", f.ID).Err(err).Msg("existence probe failed")
			continue
		}
		if ok {
			continue
		}

		if err := s.files.DeleteFile(ctx, f.ID); err != nil {
			s.log.Error().Str("file", f.ID).Err(err).Msg("pruning orphaned record")
			continue
		}
		res.Removed++
		sweepPruned.Inc()
		s.log.Info().Str("file", f.ID).Str("path", f.RemotePath()).Msg("pruned record with missing remote object")
	}

	sweepRuns.WithLabelValues("success").Inc()
	return res, nil
}
