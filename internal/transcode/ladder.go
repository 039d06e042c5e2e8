// Package transcode plans and runs per-resolution video renditions.
package transcode

import "github.com/vidplat/renditiond/internal/ffmpeg"

// Target output format for all renditions.
const (
	TargetCodec     = "h264"
	TargetContainer = "mp4"
)

// RenditionConfig describes one rung of the adaptive ladder.
type RenditionConfig struct {
	Resolution  string `json:"resolution"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	BitrateKbps int    `json:"bitrate_kbps"`
	CRF         int    `json:"crf"`
}

// DefaultLadder returns the statically defined rendition ladder, ordered
// lowest resolution first so lower qualities become playable earliest.
func DefaultLadder() []RenditionConfig {
	return []RenditionConfig{
		{Resolution: "480p", Width: 854, Height: 480, BitrateKbps: 1000, CRF: 31},
		{Resolution: "720p", Width: 1280, Height: 720, BitrateKbps: 2500, CRF: 28},
		{Resolution: "1080p", Width: 1920, Height: 1080, BitrateKbps: 5000, CRF: 25},
	}
}

// EligibleConfigs filters the ladder to rungs the source can fill without
// upscaling. A source shorter than the smallest rung yields an empty set.
func EligibleConfigs(ladder []RenditionConfig, src ffmpeg.Source) []RenditionConfig {
	var eligible []RenditionConfig
	for _, cfg := range ladder {
		if cfg.Height <= src.Height {
			eligible = append(eligible, cfg)
		}
	}
	return eligible
}

// IsSupportedCodec reports whether a source codec can be ingested.
func IsSupportedCodec(codec string) bool {
	switch codec {
	case "h264", "h265", "hevc":
		return true
	default:
		return false
	}
}
