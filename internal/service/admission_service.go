// Package service provides high-level operations over the video catalog
// and the admission registry.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/repository"
)

// AdmissionService issues and consumes one-time processing tickets.
type AdmissionService struct {
	tickets repository.TicketRepository
	logger  *slog.Logger
}

// NewAdmissionService creates a new AdmissionService.
func NewAdmissionService(tickets repository.TicketRepository) *AdmissionService {
	return &AdmissionService{
		tickets: tickets,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *AdmissionService) WithLogger(logger *slog.Logger) *AdmissionService {
	s.logger = logger
	return s
}

// IssueTicket creates an unused ticket for the given video and uploader.
func (s *AdmissionService) IssueTicket(ctx context.Context, videoID models.ULID, userID string) (*models.ProcessingTicket, error) {
	ticket := models.NewProcessingTicket(videoID, userID)
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("issuing ticket: %w", err)
	}

	s.logger.Info("issued processing ticket",
		slog.String("processing_id", ticket.ProcessingID),
		slog.String("video_id", videoID.String()),
		slog.String("user_id", userID))

	return ticket, nil
}

// Admit consumes the ticket identified by processingID and verifies it was
// issued for videoID. At most one concurrent caller succeeds for a given
// ticket; every other outcome is models.ErrTicketInvalid.
func (s *AdmissionService) Admit(ctx context.Context, processingID string, videoID models.ULID) (*models.ProcessingTicket, error) {
	ticket, err := s.tickets.Consume(ctx, processingID)
	if err != nil {
		return nil, err
	}

	if ticket.VideoID != videoID {
		s.logger.Warn("ticket video mismatch",
			slog.String("processing_id", processingID),
			slog.String("ticket_video_id", ticket.VideoID.String()),
			slog.String("request_video_id", videoID.String()))
		return nil, models.ErrTicketInvalid
	}

	s.logger.Info("admitted processing job",
		slog.String("processing_id", processingID),
		slog.String("video_id", videoID.String()))

	return ticket, nil
}
