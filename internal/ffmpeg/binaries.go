// Package ffmpeg wraps the ffmpeg and ffprobe binaries for media inspection.
package ffmpeg

import (
	"fmt"

	"github.com/vidplat/renditiond/internal/config"
	"github.com/vidplat/renditiond/internal/util"
)

// Binaries holds resolved paths to the ffmpeg tool suite.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// ResolveBinaries locates the ffmpeg and ffprobe binaries. Explicit paths
// from configuration win; otherwise the environment variables
// RENDITIOND_FFMPEG_PATH / RENDITIOND_FFPROBE_PATH, the current directory,
// and PATH are searched in that order.
func ResolveBinaries(cfg config.FFmpegConfig) (Binaries, error) {
	var b Binaries

	if cfg.BinaryPath != "" {
		b.FFmpeg = cfg.BinaryPath
	} else {
		path, err := util.FindBinary("ffmpeg", "RENDITIOND_FFMPEG_PATH")
		if err != nil {
			return Binaries{}, fmt.Errorf("resolving ffmpeg: %w", err)
		}
		b.FFmpeg = path
	}

	if cfg.ProbePath != "" {
		b.FFprobe = cfg.ProbePath
	} else {
		path, err := util.FindBinary("ffprobe", "RENDITIOND_FFPROBE_PATH")
		if err != nil {
			return Binaries{}, fmt.Errorf("resolving ffprobe: %w", err)
		}
		b.FFprobe = path
	}

	return b, nil
}
