// Package pipeline drives the per-video transcode job: rendition planning,
// encoding, artifact upload, incremental catalog updates, and compensating
// cleanup on total failure.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/vidplat/renditiond/internal/artifact"
	"github.com/vidplat/renditiond/internal/ffmpeg"
	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/repository"
	"github.com/vidplat/renditiond/internal/transcode"
	"github.com/vidplat/renditiond/internal/workspace"
)

// Transcoder produces a single rendition file.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, cfg transcode.RenditionConfig, src ffmpeg.Source) error
}

// Job carries everything the orchestrator needs for one video.
type Job struct {
	VideoID   models.ULID
	InputPath string
	Source    ffmpeg.Source
	Workspace *workspace.Workspace
}

// Orchestrator runs transcode jobs. Renditions within a job are processed
// strictly in ladder order so lower resolutions become playable first;
// concurrency happens across jobs, not within one.
type Orchestrator struct {
	engine             Transcoder
	store              artifact.Store
	videos             repository.VideoRepository
	ladder             []transcode.RenditionConfig
	preserveWorkspaces bool
	logger             *slog.Logger
}

// New creates an Orchestrator using the default rendition ladder.
func New(engine Transcoder, store artifact.Store, videos repository.VideoRepository, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		engine: engine,
		store:  store,
		videos: videos,
		ladder: transcode.DefaultLadder(),
		logger: logger,
	}
}

// WithLadder overrides the rendition ladder.
func (o *Orchestrator) WithLadder(ladder []transcode.RenditionConfig) *Orchestrator {
	o.ladder = ladder
	return o
}

// WithPreserveWorkspaces keeps job directories after completion.
func (o *Orchestrator) WithPreserveWorkspaces(preserve bool) *Orchestrator {
	o.preserveWorkspaces = preserve
	return o
}

// Run processes every eligible rendition of a job. A failed transcode or
// upload skips that rendition and continues; a failed catalog update or a
// panic is total job failure and triggers compensation: every uploaded
// artifact is deleted and the video record is removed so a half-initialized
// video never stays discoverable.
func (o *Orchestrator) Run(ctx context.Context, job *Job) (err error) {
	log := o.logger.With(slog.String("video_id", job.VideoID.String()))

	if job.Workspace != nil {
		defer func() {
			if releaseErr := job.Workspace.Release(o.preserveWorkspaces); releaseErr != nil {
				log.Warn("workspace release failed", slog.String("error", releaseErr.Error()))
			}
		}()
	}

	var uploadedKeys []string
	compensated := false
	compensate := func() {
		compensated = true
		o.compensate(ctx, log, job.VideoID, uploadedKeys)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", slog.Any("panic", r))
			if !compensated {
				compensate()
			}
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	eligible := transcode.EligibleConfigs(o.ladder, job.Source)
	if len(eligible) == 0 {
		log.Info("no eligible renditions for source",
			slog.Int("source_height", job.Source.Height),
		)
		return nil
	}

	for i, cfg := range eligible {
		last := i == len(eligible)-1
		renditionLog := log.With(slog.String("resolution", cfg.Resolution))

		outputPath := job.Workspace.OutputPath(cfg.Resolution)
		if terr := o.engine.Transcode(ctx, job.InputPath, outputPath, cfg, job.Source); terr != nil {
			renditionLog.Error("transcode failed, skipping rendition",
				slog.String("error", terr.Error()),
			)
			continue
		}

		key := fmt.Sprintf("%s_%s_%s.mp4", job.VideoID, cfg.Resolution, uuid.NewString())
		url, uerr := o.store.Upload(ctx, key, outputPath)
		if uerr != nil {
			renditionLog.Error("upload failed, skipping rendition",
				slog.String("error", uerr.Error()),
			)
			_ = os.Remove(outputPath)
			continue
		}
		uploadedKeys = append(uploadedKeys, key)

		version := models.VideoVersion{
			Resolution:  cfg.Resolution,
			URL:         url,
			Width:       cfg.Width,
			Height:      cfg.Height,
			BitrateKbps: cfg.BitrateKbps,
		}
		if cerr := o.videos.ApplyRendition(ctx, job.VideoID, version, transcode.TargetCodec, transcode.TargetContainer, last); cerr != nil {
			renditionLog.Error("catalog update failed, compensating",
				slog.String("error", cerr.Error()),
			)
			compensate()
			return fmt.Errorf("updating catalog for %s: %w", cfg.Resolution, cerr)
		}

		renditionLog.Info("rendition published", slog.String("url", url))
		_ = os.Remove(outputPath)
	}

	return nil
}

// compensate deletes every uploaded artifact and removes the catalog record.
func (o *Orchestrator) compensate(ctx context.Context, log *slog.Logger, videoID models.ULID, keys []string) {
	for _, key := range keys {
		if err := o.store.Delete(ctx, key); err != nil {
			log.Warn("failed to delete artifact during compensation",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := o.videos.Delete(ctx, videoID); err != nil {
		log.Error("failed to delete video record during compensation",
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("compensating cleanup completed", slog.Int("artifacts_deleted", len(keys)))
}
