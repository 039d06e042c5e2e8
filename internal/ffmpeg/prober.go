package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/vidplat/renditiond/internal/models"
)

// ProbeResult contains the ffprobe output for a media file.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container format information.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ProbeStream contains stream information.
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"` // video, audio, subtitle, data
	Profile   string `json:"profile,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	PixFmt    string `json:"pix_fmt,omitempty"`
	BitRate   string `json:"bit_rate,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// VideoStream returns the first video stream, or nil if there is none.
func (r *ProbeResult) VideoStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

// Source is the subset of probe data the transcode planner works from.
type Source struct {
	Codec       string
	Width       int
	Height      int
	BitrateKbps int
	Duration    float64 // seconds
}

// Source extracts planner inputs from the probe result. The container
// bitrate is preferred; the stream bitrate is the fallback, and zero means
// the bitrate is unknown.
func (r *ProbeResult) Source() (Source, error) {
	vs := r.VideoStream()
	if vs == nil {
		return Source{}, models.ErrNoVideoStream
	}

	src := Source{
		Codec:  vs.CodecName,
		Width:  vs.Width,
		Height: vs.Height,
	}

	rate := r.Format.BitRate
	if rate == "" {
		rate = vs.BitRate
	}
	if rate != "" {
		if bps, err := strconv.ParseInt(rate, 10, 64); err == nil {
			src.BitrateKbps = int(bps / 1000)
		}
	}

	if r.Format.Duration != "" {
		if d, err := strconv.ParseFloat(r.Format.Duration, 64); err == nil {
			src.Duration = d
		}
	}

	return src, nil
}

// ProbeError wraps a failed ffprobe invocation.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Prober handles ffprobe operations.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a new file prober.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	if timeout > 0 {
		p.timeout = timeout
	}
	return p
}

// Probe inspects a local media file and returns its parsed metadata.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("parsing ffprobe output: %w", err)}
	}

	return &result, nil
}
