package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vidplat/renditiond/internal/ffmpeg"
	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/pipeline"
	"github.com/vidplat/renditiond/internal/transcode"
	"github.com/vidplat/renditiond/internal/workspace"
)

// SourceProber inspects a staged source file.
type SourceProber interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// JobSubmitter hands a prepared job to the background pool.
type JobSubmitter interface {
	Submit(job *pipeline.Job) bool
}

// IngestService runs the synchronous admission phase of an upload: consume
// the ticket, stage the source file into a workspace, probe it, gate on
// codec support, and hand the job off for background transcoding.
type IngestService struct {
	admission  *AdmissionService
	videos     *VideoService
	prober     SourceProber
	workspaces *workspace.Manager
	pool       JobSubmitter
	logger     *slog.Logger
}

// NewIngestService creates a new IngestService.
func NewIngestService(
	admission *AdmissionService,
	videos *VideoService,
	prober SourceProber,
	workspaces *workspace.Manager,
	pool JobSubmitter,
) *IngestService {
	return &IngestService{
		admission:  admission,
		videos:     videos,
		prober:     prober,
		workspaces: workspaces,
		pool:       pool,
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *IngestService) WithLogger(logger *slog.Logger) *IngestService {
	s.logger = logger
	return s
}

// StartProcessing admits and stages an upload, then submits it for
// background transcoding. Admission failures happen before any workspace
// exists; every later failure releases the workspace before returning.
func (s *IngestService) StartProcessing(ctx context.Context, videoID models.ULID, processingID string, source io.Reader, filename string) error {
	if _, err := s.admission.Admit(ctx, processingID, videoID); err != nil {
		return err
	}

	video, err := s.videos.Get(ctx, videoID)
	if err != nil {
		return err
	}

	ws, err := s.workspaces.Acquire(videoID.String())
	if err != nil {
		return fmt.Errorf("acquiring workspace: %w", err)
	}

	inputPath, err := s.stage(ws, source, filename)
	if err != nil {
		s.releaseOnError(ws, videoID)
		return fmt.Errorf("staging source file: %w", err)
	}

	probed, err := s.prober.Probe(ctx, inputPath)
	if err != nil {
		s.releaseOnError(ws, videoID)
		return err
	}
	src, err := probed.Source()
	if err != nil {
		s.releaseOnError(ws, videoID)
		return err
	}

	if !transcode.IsSupportedCodec(src.Codec) {
		s.releaseOnError(ws, videoID)
		return fmt.Errorf("%w: %s", models.ErrUnsupportedCodec, src.Codec)
	}

	job := &pipeline.Job{
		VideoID:   videoID,
		InputPath: inputPath,
		Source:    src,
		Workspace: ws,
	}

	if !s.pool.Submit(job) {
		s.releaseOnError(ws, videoID)
		return models.ErrPipelineBusy
	}

	s.logger.Info("upload admitted for transcoding",
		slog.String("video_id", videoID.String()),
		slog.String("processing_id", processingID),
		slog.String("title", video.Title),
		slog.String("codec", src.Codec),
		slog.Int("source_height", src.Height),
		slog.Int("source_bitrate_kbps", src.BitrateKbps))

	return nil
}

// stage copies the uploaded stream into the workspace, preserving the
// original file extension for the probe step.
func (s *IngestService) stage(ws *workspace.Workspace, source io.Reader, filename string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".mp4"
	}
	inputPath := ws.InputPath(ext)

	f, err := os.Create(inputPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, source); err != nil {
		return "", err
	}
	return inputPath, nil
}

func (s *IngestService) releaseOnError(ws *workspace.Workspace, videoID models.ULID) {
	if err := ws.Release(false); err != nil {
		s.logger.Warn("failed to release workspace",
			slog.String("video_id", videoID.String()),
			slog.String("error", err.Error()))
	}
}
