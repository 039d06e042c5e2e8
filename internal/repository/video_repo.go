package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidplat/renditiond/internal/models"
	"gorm.io/gorm"
)

// videoRepo implements VideoRepository using GORM.
type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *videoRepo {
	return &videoRepo{db: db}
}

var _ VideoRepository = (*videoRepo)(nil)

// Create creates a new video record.
func (r *videoRepo) Create(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		return fmt.Errorf("creating video: %w", err)
	}
	return nil
}

// GetByID retrieves a video by ID.
func (r *videoRepo) GetByID(ctx context.Context, id models.ULID) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by ID: %w", err)
	}
	return &video, nil
}

// GetAll retrieves all video records.
func (r *videoRepo) GetAll(ctx context.Context) ([]*models.Video, error) {
	var videos []*models.Video
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("getting all videos: %w", err)
	}
	return videos, nil
}

// Update updates an existing video record.
func (r *videoRepo) Update(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Save(video).Error; err != nil {
		return fmt.Errorf("updating video: %w", err)
	}
	return nil
}

// ApplyRendition merges a finished rendition into the video's catalog.
// The row is re-read inside the transaction so versions written between
// renditions of the same job, or by another job, are preserved.
func (r *videoRepo) ApplyRendition(ctx context.Context, id models.ULID, version models.VideoVersion, codec, container string, publish bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var video models.Video
		if err := tx.Where("id = ?", id).First(&video).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrVideoNotFound
			}
			return err
		}

		video.Metadata.SetVersion(version)
		video.Metadata.Codec = codec
		video.Metadata.Container = container
		video.URL = version.URL
		if publish {
			video.Status = models.VideoStatusPublished
		}

		return tx.Save(&video).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			return err
		}
		return fmt.Errorf("applying rendition: %w", err)
	}
	return nil
}

// Delete removes a video record by ID.
func (r *videoRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Video{}).Error; err != nil {
		return fmt.Errorf("deleting video: %w", err)
	}
	return nil
}
