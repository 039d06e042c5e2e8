// Package repository defines data access interfaces for renditiond entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/vidplat/renditiond/internal/models"
)

// TicketRepository defines operations for processing ticket persistence.
type TicketRepository interface {
	// Create creates a new ticket.
	Create(ctx context.Context, ticket *models.ProcessingTicket) error
	// GetByProcessingID retrieves a ticket by its token. Returns nil if not found.
	GetByProcessingID(ctx context.Context, processingID string) (*models.ProcessingTicket, error)
	// Consume atomically marks an unused ticket as used and returns it.
	// Returns models.ErrTicketInvalid when the ticket does not exist or
	// was already consumed.
	Consume(ctx context.Context, processingID string) (*models.ProcessingTicket, error)
	// PurgeUsedBefore removes consumed tickets older than the cutoff.
	PurgeUsedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// VideoRepository defines operations for video catalog persistence.
type VideoRepository interface {
	// Create creates a new video record.
	Create(ctx context.Context, video *models.Video) error
	// GetByID retrieves a video by ID. Returns nil if not found.
	GetByID(ctx context.Context, id models.ULID) (*models.Video, error)
	// GetAll retrieves all video records.
	GetAll(ctx context.Context) ([]*models.Video, error)
	// Update updates an existing video record.
	Update(ctx context.Context, video *models.Video) error
	// ApplyRendition merges a finished rendition into the video's catalog.
	// The record is re-fetched inside a transaction so renditions applied
	// by earlier calls are never overwritten. When publish is true the
	// video transitions to published.
	ApplyRendition(ctx context.Context, id models.ULID, version models.VideoVersion, codec, container string, publish bool) error
	// Delete removes a video record by ID.
	Delete(ctx context.Context, id models.ULID) error
}
