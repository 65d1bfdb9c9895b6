package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
)

// StandingsSource exposes the live window for archiving.
type StandingsSource interface {
	Snapshot(ctx context.Context) ([]domain.StandingsEntry, error)
}

// StandingsSink is where archived windows go.
type StandingsSink interface {
	ArchiveStandings(ctx context.Context, windowEnd time.Time, entries []domain.StandingsEntry) error
}

// DeadlineSource reports the deadline the current archive belongs to.
type DeadlineSource interface {
	Window(ctx context.Context) (domain.WindowStatus, error)
}

// Archiver periodically copies the live standings to durable storage. If the
// process dies close to the boundary, the most recent archive is what the
// payout would have been computed from.
type Archiver struct {
	source   StandingsSource
	sink     StandingsSink
	deadline DeadlineSource
	config   *config.ArchiveConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewArchiver creates a new standings archiver
func NewArchiver(
	source StandingsSource,
	sink StandingsSink,
	deadline DeadlineSource,
	cfg *config.ArchiveConfig,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		source:   source,
		sink:     sink,
		deadline: deadline,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background archive process
func (a *Archiver) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	a.logger.Info("standings archiver started", "interval", a.config.Interval)

	go a.run(ctx)
	return nil
}

// Stop stops the background archive process
func (a *Archiver) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	close(a.stopCh)
	<-a.doneCh

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.logger.Info("standings archiver stopped")
	return nil
}

// run is the main worker loop
func (a *Archiver) run(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// RunOnce archives the current window once
func (a *Archiver) RunOnce(ctx context.Context) {
	startTime := time.Now()

	status, err := a.deadline.Window(ctx)
	if err != nil {
		a.logger.Error("failed to read window status", "error", err)
		return
	}

	entries, err := a.source.Snapshot(ctx)
	if err != nil {
		a.logger.Error("failed to snapshot standings", "error", err)
		return
	}
	if len(entries) == 0 {
		a.logger.Debug("no standings to archive")
		return
	}

	if err := a.sink.ArchiveStandings(ctx, status.ResetAt, entries); err != nil {
		a.logger.Error("failed to archive standings", "error", err)
		return
	}

	a.logger.Info("standings archived",
		"window_end", status.ResetAt,
		"entries", len(entries),
		"duration", time.Since(startTime),
	)
}

// IsRunning returns whether the archiver is currently running
func (a *Archiver) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
