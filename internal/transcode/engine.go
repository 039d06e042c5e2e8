package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/vidplat/renditiond/internal/config"
	"github.com/vidplat/renditiond/internal/ffmpeg"
)

// cuvidDecoders maps source codecs to their CUDA hardware decoders.
// A codec without an entry falls back to software decode.
var cuvidDecoders = map[string]string{
	"h264": "h264_cuvid",
	"hevc": "hevc_cuvid",
	"h265": "hevc_cuvid",
}

// Decision captures what a rendition needs changed relative to the source.
type Decision struct {
	Resize       bool // source is taller than the target height
	ClampBitrate bool // source bitrate exceeds the target bitrate
	ConvertCodec bool // source codec is not the target codec
}

// NeedsReencode reports whether any change is required. When false, the
// rendition is produced by copying the source file byte for byte.
func (d Decision) NeedsReencode() bool {
	return d.Resize || d.ClampBitrate || d.ConvertCodec
}

// Plan compares a probed source against a ladder rung.
func Plan(src ffmpeg.Source, cfg RenditionConfig) Decision {
	return Decision{
		Resize:       src.Height > cfg.Height,
		ClampBitrate: src.BitrateKbps > cfg.BitrateKbps,
		ConvertCodec: src.Codec != TargetCodec,
	}
}

// TranscodeError wraps a failed encoder invocation along with the tail of
// the tool's diagnostic output.
type TranscodeError struct {
	Resolution string
	Stderr     string
	Err        error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcoding %s: %v", e.Resolution, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Engine runs ffmpeg to produce renditions.
type Engine struct {
	ffmpegPath string
	encoder    string
	preset     string
	hwDecode   bool
	logger     *slog.Logger
}

// NewEngine creates a rendition engine using the resolved ffmpeg binary.
func NewEngine(ffmpegPath string, cfg config.TranscodeConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ffmpegPath: ffmpegPath,
		encoder:    cfg.Encoder,
		preset:     cfg.Preset,
		hwDecode:   cfg.HWDecode,
		logger:     logger,
	}
}

// Transcode produces one rendition of the source file. When no change is
// required the source is copied untouched; otherwise ffmpeg re-encodes it.
func (e *Engine) Transcode(ctx context.Context, inputPath, outputPath string, cfg RenditionConfig, src ffmpeg.Source) error {
	decision := Plan(src, cfg)

	e.logger.Debug("rendition planned",
		slog.String("resolution", cfg.Resolution),
		slog.Bool("resize", decision.Resize),
		slog.Bool("clamp_bitrate", decision.ClampBitrate),
		slog.Bool("convert_codec", decision.ConvertCodec),
	)

	if !decision.NeedsReencode() {
		if err := copyFile(inputPath, outputPath); err != nil {
			return &TranscodeError{Resolution: cfg.Resolution, Err: fmt.Errorf("copying source: %w", err)}
		}
		return nil
	}

	args := e.buildArgs(inputPath, outputPath, cfg, src, decision)
	e.logger.Debug("running ffmpeg", slog.Any("args", args))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &TranscodeError{
			Resolution: cfg.Resolution,
			Stderr:     tail(stderr.String(), 4096),
			Err:        err,
		}
	}

	// A clean exit is not enough; the rendition only exists if ffmpeg
	// actually wrote it.
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return &TranscodeError{
			Resolution: cfg.Resolution,
			Stderr:     tail(stderr.String(), 4096),
			Err:        fmt.Errorf("encoder produced no output at %s", outputPath),
		}
	}
	return nil
}

// buildArgs assembles the ffmpeg command line for a re-encode.
func (e *Engine) buildArgs(inputPath, outputPath string, cfg RenditionConfig, src ffmpeg.Source, decision Decision) []string {
	args := []string{"-y"}

	if e.hwDecode {
		if decoder, ok := cuvidDecoders[src.Codec]; ok {
			args = append(args, "-hwaccel", "cuda", "-c:v", decoder)
		}
	}

	args = append(args, "-i", inputPath)

	args = append(args,
		"-c:v", e.encoder,
		"-preset", e.preset,
		"-profile:v", "high",
		"-rc:v", "vbr",
		"-c:a", "copy",
		"-crf", strconv.Itoa(cfg.CRF),
	)

	// Keep the source bitrate when it is already below target, otherwise
	// clamp to the rung's target. Buffer is sized at twice the bitrate.
	bitrate := src.BitrateKbps
	if decision.ClampBitrate {
		bitrate = cfg.BitrateKbps
	}
	args = append(args,
		"-b:v", kbps(bitrate),
		"-maxrate", kbps(bitrate),
		"-bufsize", kbps(bitrate*2),
	)

	switch {
	case decision.Resize:
		w := cfg.Width / 2 * 2
		h := cfg.Height / 2 * 2
		args = append(args, "-vf", fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,format=yuv420p",
			w, h, w, h,
		))
	case decision.ConvertCodec:
		args = append(args, "-vf", "format=yuv420p")
	}

	return append(args, outputPath)
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}

// tail returns the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// copyFile copies src to dst, truncating dst if it exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
