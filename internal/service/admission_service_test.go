package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidplat/renditiond/internal/models"
)

// memTicketRepo is an in-memory TicketRepository for service tests.
type memTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*models.ProcessingTicket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*models.ProcessingTicket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *models.ProcessingTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID.IsZero() {
		ticket.ID = models.NewULID()
	}
	r.tickets[ticket.ProcessingID] = ticket
	return nil
}

func (r *memTicketRepo) GetByProcessingID(_ context.Context, processingID string) (*models.ProcessingTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickets[processingID], nil
}

func (r *memTicketRepo) Consume(_ context.Context, processingID string) (*models.ProcessingTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[processingID]
	if !ok || ticket.Used {
		return nil, models.ErrTicketInvalid
	}
	ticket.MarkUsed()
	return ticket, nil
}

func (r *memTicketRepo) PurgeUsedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for id, ticket := range r.tickets {
		if ticket.Used && ticket.UsedAt != nil && time.Time(*ticket.UsedAt).Before(cutoff) {
			delete(r.tickets, id)
			purged++
		}
	}
	return purged, nil
}

func TestAdmissionServiceIssueAndAdmit(t *testing.T) {
	repo := newMemTicketRepo()
	svc := NewAdmissionService(repo)
	ctx := context.Background()

	videoID := models.NewULID()
	ticket, err := svc.IssueTicket(ctx, videoID, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, ticket.ProcessingID)
	assert.False(t, ticket.Used)

	admitted, err := svc.Admit(ctx, ticket.ProcessingID, videoID)
	require.NoError(t, err)
	assert.True(t, admitted.Used)

	// A ticket admits exactly once.
	_, err = svc.Admit(ctx, ticket.ProcessingID, videoID)
	assert.ErrorIs(t, err, models.ErrTicketInvalid)
}

func TestAdmissionServiceAdmitUnknownTicket(t *testing.T) {
	svc := NewAdmissionService(newMemTicketRepo())

	_, err := svc.Admit(context.Background(), "no-such-ticket", models.NewULID())
	assert.ErrorIs(t, err, models.ErrTicketInvalid)
}

func TestAdmissionServiceAdmitVideoMismatch(t *testing.T) {
	repo := newMemTicketRepo()
	svc := NewAdmissionService(repo)
	ctx := context.Background()

	ticket, err := svc.IssueTicket(ctx, models.NewULID(), "user-1")
	require.NoError(t, err)

	_, err = svc.Admit(ctx, ticket.ProcessingID, models.NewULID())
	assert.ErrorIs(t, err, models.ErrTicketInvalid)
}
