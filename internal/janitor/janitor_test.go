package janitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidplat/renditiond/internal/config"
	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/workspace"
)

// stubTicketRepo records purge calls.
type stubTicketRepo struct {
	mu      sync.Mutex
	cutoffs []time.Time
	purged  int64
}

func (r *stubTicketRepo) Create(context.Context, *models.ProcessingTicket) error { return nil }
func (r *stubTicketRepo) GetByProcessingID(context.Context, string) (*models.ProcessingTicket, error) {
	return nil, nil
}
func (r *stubTicketRepo) Consume(context.Context, string) (*models.ProcessingTicket, error) {
	return nil, models.ErrTicketInvalid
}
func (r *stubTicketRepo) PurgeUsedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return r.purged, nil
}

func testConfig() config.JanitorConfig {
	return config.JanitorConfig{
		Enabled:   true,
		Cron:      "0 3 * * *",
		OrphanTTL: 24 * time.Hour,
		TicketTTL: 7 * 24 * time.Hour,
	}
}

func TestNewRejectsBadCron(t *testing.T) {
	m, err := workspace.NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Cron = "not a cron"
	_, err = New(cfg, m, &stubTicketRepo{}, nil)
	assert.Error(t, err)
}

func TestSweepRemovesStaleWorkspacesAndPurgesTickets(t *testing.T) {
	base := t.TempDir()
	m, err := workspace.NewManager(base, nil)
	require.NoError(t, err)

	stale := filepath.Join(base, "job-stale")
	require.NoError(t, os.MkdirAll(stale, 0o750))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(base, "job-fresh")
	require.NoError(t, os.MkdirAll(fresh, 0o750))

	tickets := &stubTicketRepo{purged: 3}
	j, err := New(testConfig(), m, tickets, nil)
	require.NoError(t, err)

	j.Sweep(context.Background())

	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)

	require.Len(t, tickets.cutoffs, 1)
	wantCutoff := time.Now().Add(-7 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, tickets.cutoffs[0], time.Minute)
}

func TestStartStop(t *testing.T) {
	m, err := workspace.NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	j, err := New(testConfig(), m, &stubTicketRepo{}, nil)
	require.NoError(t, err)

	require.NoError(t, j.Start(context.Background()))
	assert.Error(t, j.Start(context.Background()))
	j.Stop()

	// The janitor can be restarted after a stop.
	require.NoError(t, j.Start(context.Background()))
	j.Stop()
}
