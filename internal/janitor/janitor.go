// Package janitor performs scheduled maintenance: sweeping orphaned job
// workspaces and purging consumed admission tickets.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vidplat/renditiond/internal/config"
	"github.com/vidplat/renditiond/internal/repository"
	"github.com/vidplat/renditiond/internal/workspace"
)

// Janitor runs periodic cleanup on a cron schedule.
type Janitor struct {
	mu sync.Mutex

	workspaces *workspace.Manager
	tickets    repository.TicketRepository
	logger     *slog.Logger

	schedule  cron.Schedule
	orphanTTL time.Duration
	ticketTTL time.Duration

	// checkInterval is how often the schedule is evaluated.
	checkInterval time.Duration

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a janitor from the given configuration.
func New(cfg config.JanitorConfig, workspaces *workspace.Manager, tickets repository.TicketRepository, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("invalid janitor cron expression %q: %w", cfg.Cron, err)
	}

	return &Janitor{
		workspaces:    workspaces,
		tickets:       tickets,
		logger:        logger,
		schedule:      schedule,
		orphanTTL:     cfg.OrphanTTL,
		ticketTTL:     cfg.TicketTTL,
		checkInterval: time.Minute,
	}, nil
}

// Start begins the janitor's schedule loop.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ctx != nil {
		return fmt.Errorf("janitor already started")
	}

	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.loop()

	j.logger.Info("janitor started",
		slog.Duration("orphan_ttl", j.orphanTTL),
		slog.Duration("ticket_ttl", j.ticketTTL))

	return nil
}

// Stop stops the janitor.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if j.cancel != nil {
		j.cancel()
	}
	j.mu.Unlock()

	j.wg.Wait()

	j.mu.Lock()
	j.ctx = nil
	j.cancel = nil
	j.mu.Unlock()

	j.logger.Info("janitor stopped")
}

// loop fires Sweep whenever the cron schedule comes due.
func (j *Janitor) loop() {
	defer j.wg.Done()

	next := j.schedule.Next(time.Now())
	ticker := time.NewTicker(j.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case now := <-ticker.C:
			if now.Before(next) {
				continue
			}
			j.Sweep(j.ctx)
			next = j.schedule.Next(now)
		}
	}
}

// Sweep removes expired workspaces and purges consumed tickets. It is also
// called once at startup to reclaim directories left by a previous crash.
func (j *Janitor) Sweep(ctx context.Context) {
	removed, err := j.workspaces.CleanupOrphans(j.orphanTTL)
	if err != nil {
		j.logger.Error("workspace sweep failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		j.logger.Info("swept orphaned workspaces", slog.Int("removed", removed))
	}

	purged, err := j.tickets.PurgeUsedBefore(ctx, time.Now().Add(-j.ticketTTL))
	if err != nil {
		j.logger.Error("ticket purge failed", slog.String("error", err.Error()))
	} else if purged > 0 {
		j.logger.Info("purged consumed tickets", slog.Int64("purged", purged))
	}
}
