package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/vidplat/renditiond/internal/artifact"
	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/repository"
)

// VideoService provides catalog operations for video records and their
// stored rendition artifacts.
type VideoService struct {
	videos repository.VideoRepository
	store  artifact.Store
	logger *slog.Logger
}

// NewVideoService creates a new VideoService.
func NewVideoService(videos repository.VideoRepository, store artifact.Store) *VideoService {
	return &VideoService{
		videos: videos,
		store:  store,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *VideoService) WithLogger(logger *slog.Logger) *VideoService {
	s.logger = logger
	return s
}

// Create registers a new catalog record in the processing state.
func (s *VideoService) Create(ctx context.Context, title string) (*models.Video, error) {
	video := &models.Video{Title: title}
	if err := video.Validate(); err != nil {
		return nil, err
	}
	if err := s.videos.Create(ctx, video); err != nil {
		return nil, fmt.Errorf("creating video: %w", err)
	}

	s.logger.Info("created video record",
		slog.String("video_id", video.ID.String()),
		slog.String("title", video.Title))

	return video, nil
}

// Get retrieves a video by ID.
func (s *VideoService) Get(ctx context.Context, id models.ULID) (*models.Video, error) {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, models.ErrVideoNotFound
	}
	return video, nil
}

// List retrieves all videos.
func (s *VideoService) List(ctx context.Context) ([]*models.Video, error) {
	return s.videos.GetAll(ctx)
}

// Delete removes a video record and its rendition artifacts. Artifact
// deletion failures are logged and skipped so the catalog record is always
// removed.
func (s *VideoService) Delete(ctx context.Context, id models.ULID) error {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if video == nil {
		return models.ErrVideoNotFound
	}

	for _, version := range video.Metadata.Versions {
		key := artifactKey(version.URL)
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete rendition artifact",
				slog.String("video_id", id.String()),
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	if err := s.videos.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting video: %w", err)
	}

	s.logger.Info("deleted video",
		slog.String("video_id", id.String()),
		slog.Int("renditions", len(video.Metadata.Versions)))

	return nil
}

// artifactKey extracts the object key from a rendition URL.
func artifactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
