package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vidplat/renditiond/internal/models"
	"gorm.io/gorm"
)

// ticketRepo implements TicketRepository using GORM.
type ticketRepo struct {
	db *gorm.DB
}

// NewTicketRepository creates a new TicketRepository.
func NewTicketRepository(db *gorm.DB) *ticketRepo {
	return &ticketRepo{db: db}
}

var _ TicketRepository = (*ticketRepo)(nil)

// Create creates a new ticket.
func (r *ticketRepo) Create(ctx context.Context, ticket *models.ProcessingTicket) error {
	if err := r.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return fmt.Errorf("creating ticket: %w", err)
	}
	return nil
}

// GetByProcessingID retrieves a ticket by its token.
func (r *ticketRepo) GetByProcessingID(ctx context.Context, processingID string) (*models.ProcessingTicket, error) {
	var ticket models.ProcessingTicket
	if err := r.db.WithContext(ctx).Where("processing_id = ?", processingID).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting ticket by processing ID: %w", err)
	}
	return &ticket, nil
}

// Consume atomically marks an unused ticket as used. The guarded UPDATE is
// the single admission point: of two concurrent consumers exactly one sees
// a row flip from unused to used.
func (r *ticketRepo) Consume(ctx context.Context, processingID string) (*models.ProcessingTicket, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProcessingTicket{}).
		Where("processing_id = ? AND used = ?", processingID, false).
		Updates(map[string]any{"used": true, "used_at": time.Now()})
	if res.Error != nil {
		return nil, fmt.Errorf("consuming ticket: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrTicketInvalid
	}

	ticket, err := r.GetByProcessingID(ctx, processingID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, models.ErrTicketInvalid
	}
	return ticket, nil
}

// PurgeUsedBefore removes consumed tickets older than the cutoff.
func (r *ticketRepo) PurgeUsedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Unscoped().
		Where("used = ? AND used_at < ?", true, cutoff).
		Delete(&models.ProcessingTicket{})
	if res.Error != nil {
		return 0, fmt.Errorf("purging tickets: %w", res.Error)
	}
	return res.RowsAffected, nil
}
