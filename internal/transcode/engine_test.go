package transcode

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidplat/renditiond/internal/config"
	"github.com/vidplat/renditiond/internal/ffmpeg"
)

func engineConfig() config.TranscodeConfig {
	return config.TranscodeConfig{Encoder: "h264_nvenc", Preset: "p4", HWDecode: true}
}

func TestPlan(t *testing.T) {
	cfg := RenditionConfig{Resolution: "720p", Width: 1280, Height: 720, BitrateKbps: 2500, CRF: 28}

	tests := []struct {
		name string
		src  ffmpeg.Source
		want Decision
	}{
		{
			name: "matches target",
			src:  ffmpeg.Source{Codec: "h264", Height: 720, BitrateKbps: 2000},
			want: Decision{},
		},
		{
			name: "taller source",
			src:  ffmpeg.Source{Codec: "h264", Height: 1080, BitrateKbps: 2000},
			want: Decision{Resize: true},
		},
		{
			name: "hot bitrate",
			src:  ffmpeg.Source{Codec: "h264", Height: 720, BitrateKbps: 4000},
			want: Decision{ClampBitrate: true},
		},
		{
			name: "hevc source",
			src:  ffmpeg.Source{Codec: "hevc", Height: 720, BitrateKbps: 2000},
			want: Decision{ConvertCodec: true},
		},
		{
			name: "everything",
			src:  ffmpeg.Source{Codec: "hevc", Height: 2160, BitrateKbps: 12000},
			want: Decision{Resize: true, ClampBitrate: true, ConvertCodec: true},
		},
		{
			name: "unknown bitrate",
			src:  ffmpeg.Source{Codec: "h264", Height: 720},
			want: Decision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.src, cfg)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != Decision{}, got.NeedsReencode())
		})
	}
}

func TestBuildArgsClampedBitrate(t *testing.T) {
	e := NewEngine("ffmpeg", engineConfig(), nil)
	cfg := RenditionConfig{Resolution: "480p", Width: 854, Height: 480, BitrateKbps: 1000, CRF: 31}
	src := ffmpeg.Source{Codec: "hevc", Height: 1080, BitrateKbps: 4500}

	args := e.buildArgs("in.mp4", "out.mp4", cfg, src, Plan(src, cfg))

	assert.Equal(t, []string{
		"-y",
		"-hwaccel", "cuda", "-c:v", "hevc_cuvid",
		"-i", "in.mp4",
		"-c:v", "h264_nvenc",
		"-preset", "p4",
		"-profile:v", "high",
		"-rc:v", "vbr",
		"-c:a", "copy",
		"-crf", "31",
		"-b:v", "1000k",
		"-maxrate", "1000k",
		"-bufsize", "2000k",
		"-vf", "scale=854:480:force_original_aspect_ratio=decrease,pad=854:480:(ow-iw)/2:(oh-ih)/2,format=yuv420p",
		"out.mp4",
	}, args)
}

func TestBuildArgsKeepsLowSourceBitrate(t *testing.T) {
	e := NewEngine("ffmpeg", engineConfig(), nil)
	cfg := RenditionConfig{Resolution: "1080p", Width: 1920, Height: 1080, BitrateKbps: 5000, CRF: 25}
	src := ffmpeg.Source{Codec: "hevc", Height: 1080, BitrateKbps: 3000}

	args := e.buildArgs("in.mp4", "out.mp4", cfg, src, Plan(src, cfg))

	// No resize needed, only the codec changes, and the source bitrate is kept.
	assert.Contains(t, args, "-b:v")
	assert.Contains(t, args, "3000k")
	assert.Contains(t, args, "6000k")
	assert.NotContains(t, args, "5000k")

	vf := args[len(args)-3]
	assert.Equal(t, "-vf", vf)
	assert.Equal(t, "format=yuv420p", args[len(args)-2])
}

func TestBuildArgsNoHWDecodeForUnknownCodec(t *testing.T) {
	e := NewEngine("ffmpeg", engineConfig(), nil)
	cfg := RenditionConfig{Resolution: "480p", Width: 854, Height: 480, BitrateKbps: 1000, CRF: 31}
	src := ffmpeg.Source{Codec: "vp9", Height: 1080, BitrateKbps: 2000}

	args := e.buildArgs("in.mp4", "out.mp4", cfg, src, Plan(src, cfg))
	assert.NotContains(t, args, "-hwaccel")
}

func TestBuildArgsHWDecodeDisabled(t *testing.T) {
	cfg := engineConfig()
	cfg.HWDecode = false
	e := NewEngine("ffmpeg", cfg, nil)
	rung := RenditionConfig{Resolution: "480p", Width: 854, Height: 480, BitrateKbps: 1000, CRF: 31}
	src := ffmpeg.Source{Codec: "h264", Height: 1080, BitrateKbps: 2000}

	args := e.buildArgs("in.mp4", "out.mp4", rung, src, Plan(src, rung))
	assert.NotContains(t, args, "-hwaccel")
}

func TestBuildArgsEvenDimensions(t *testing.T) {
	e := NewEngine("ffmpeg", engineConfig(), nil)
	cfg := RenditionConfig{Resolution: "odd", Width: 855, Height: 481, BitrateKbps: 1000, CRF: 31}
	src := ffmpeg.Source{Codec: "h264", Height: 1080, BitrateKbps: 500}

	args := e.buildArgs("in.mp4", "out.mp4", cfg, src, Plan(src, cfg))
	assert.Contains(t, args, "scale=854:480:force_original_aspect_ratio=decrease,pad=854:480:(ow-iw)/2:(oh-ih)/2,format=yuv420p")
}

func TestTranscodeFastPathCopies(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.mp4")
	outputPath := filepath.Join(dir, "output.mp4")
	content := []byte("fake mp4 payload")
	require.NoError(t, os.WriteFile(inputPath, content, 0o644))

	e := NewEngine("ffmpeg-not-invoked", engineConfig(), nil)
	cfg := RenditionConfig{Resolution: "1080p", Width: 1920, Height: 1080, BitrateKbps: 5000, CRF: 25}
	src := ffmpeg.Source{Codec: "h264", Height: 1080, BitrateKbps: 3000}

	require.NoError(t, e.Transcode(context.Background(), inputPath, outputPath, cfg, src))

	// The output is byte-identical to the input.
	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestTranscodeEmptyOutputFails(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("data"), 0o644))

	// An encoder that exits 0 without writing any output.
	binPath := filepath.Join(dir, "fake-ffmpeg")
	require.NoError(t, os.WriteFile(binPath, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	e := NewEngine(binPath, engineConfig(), nil)
	cfg := RenditionConfig{Resolution: "720p", Width: 1280, Height: 720, BitrateKbps: 2500, CRF: 28}
	src := ffmpeg.Source{Codec: "hevc", Height: 1080, BitrateKbps: 4000}

	err := e.Transcode(context.Background(), inputPath, filepath.Join(dir, "out.mp4"), cfg, src)
	require.Error(t, err)

	var terr *TranscodeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "720p", terr.Resolution)
	assert.Contains(t, terr.Err.Error(), "no output")

	// A zero-byte file is treated the same as a missing one.
	binPath2 := filepath.Join(dir, "fake-ffmpeg-touch")
	require.NoError(t, os.WriteFile(binPath2, []byte("#!/bin/sh\nfor last; do :; done\n: > \"$last\"\nexit 0\n"), 0o755))

	e2 := NewEngine(binPath2, engineConfig(), nil)
	err = e2.Transcode(context.Background(), inputPath, filepath.Join(dir, "out2.mp4"), cfg, src)
	require.ErrorAs(t, err, &terr)
}

func TestTranscodeMissingBinary(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("data"), 0o644))

	e := NewEngine(filepath.Join(dir, "no-such-ffmpeg"), engineConfig(), nil)
	cfg := RenditionConfig{Resolution: "480p", Width: 854, Height: 480, BitrateKbps: 1000, CRF: 31}
	src := ffmpeg.Source{Codec: "hevc", Height: 1080, BitrateKbps: 4000}

	err := e.Transcode(context.Background(), inputPath, filepath.Join(dir, "out.mp4"), cfg, src)
	require.Error(t, err)

	var terr *TranscodeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "480p", terr.Resolution)
}
