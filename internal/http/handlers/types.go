// Package handlers provides HTTP API handlers for renditiond.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vidplat/renditiond/internal/models"
)

// VideoVersionResponse represents a stored rendition in API responses.
type VideoVersionResponse struct {
	Resolution  string `json:"resolution" doc:"Rendition label, e.g. 720p"`
	URL         string `json:"url" doc:"Public artifact URL"`
	Width       int    `json:"width,omitempty" doc:"Frame width in pixels"`
	Height      int    `json:"height,omitempty" doc:"Frame height in pixels"`
	BitrateKbps int    `json:"bitrate_kbps,omitempty" doc:"Target bitrate in kbps"`
}

// VideoResponse represents a catalog record in API responses.
type VideoResponse struct {
	ID        string                 `json:"id" doc:"Video ID (ULID)"`
	Title     string                 `json:"title"`
	Status    string                 `json:"status" enum:"processing,published,failed"`
	URL       string                 `json:"url,omitempty" doc:"URL of the most recently completed rendition"`
	Codec     string                 `json:"codec,omitempty"`
	Container string                 `json:"container,omitempty"`
	Versions  []VideoVersionResponse `json:"versions"`
	CreatedAt string                 `json:"created_at"`
	UpdatedAt string                 `json:"updated_at"`
}

// VideoFromModel converts a video model to its API representation.
func VideoFromModel(v *models.Video) VideoResponse {
	resp := VideoResponse{
		ID:        v.ID.String(),
		Title:     v.Title,
		Status:    string(v.Status),
		URL:       v.URL,
		Codec:     v.Metadata.Codec,
		Container: v.Metadata.Container,
		Versions:  make([]VideoVersionResponse, 0, len(v.Metadata.Versions)),
		CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: v.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, ver := range v.Metadata.Versions {
		resp.Versions = append(resp.Versions, VideoVersionResponse{
			Resolution:  ver.Resolution,
			URL:         ver.URL,
			Width:       ver.Width,
			Height:      ver.Height,
			BitrateKbps: ver.BitrateKbps,
		})
	}
	return resp
}

// writeJSONError writes an error response in JSON format for consistency
// with API clients.
func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
