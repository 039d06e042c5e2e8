package models

import "gorm.io/gorm"

// VideoStatus represents the lifecycle state of a video record.
type VideoStatus string

const (
	// VideoStatusProcessing indicates transcoding is in progress.
	VideoStatusProcessing VideoStatus = "processing"
	// VideoStatusPublished indicates all renditions are available.
	VideoStatusPublished VideoStatus = "published"
	// VideoStatusFailed indicates processing was abandoned.
	VideoStatusFailed VideoStatus = "failed"
)

// VideoVersion describes a single stored rendition of a video.
type VideoVersion struct {
	Resolution  string `json:"resolution"`
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	BitrateKbps int    `json:"bitrate_kbps"`
}

// VideoMetadata holds the rendition catalog for a video.
type VideoMetadata struct {
	Codec     string         `json:"codec,omitempty"`
	Container string         `json:"container,omitempty"`
	Versions  []VideoVersion `json:"versions,omitempty"`
}

// Version returns the version with the given resolution label, or nil.
func (m *VideoMetadata) Version(resolution string) *VideoVersion {
	for i := range m.Versions {
		if m.Versions[i].Resolution == resolution {
			return &m.Versions[i]
		}
	}
	return nil
}

// SetVersion inserts or replaces the version with the same resolution label.
func (m *VideoMetadata) SetVersion(v VideoVersion) {
	for i := range m.Versions {
		if m.Versions[i].Resolution == v.Resolution {
			m.Versions[i] = v
			return
		}
	}
	m.Versions = append(m.Versions, v)
}

// Video represents an ingested video and its rendition catalog.
type Video struct {
	BaseModel

	// Title is the display title supplied at ingest time.
	Title string `gorm:"not null;size:255" json:"title"`

	// Status tracks the processing lifecycle.
	Status VideoStatus `gorm:"not null;default:'processing';size:20;index" json:"status"`

	// URL points at the primary playable rendition.
	URL string `gorm:"size:2048" json:"url,omitempty"`

	// Metadata holds codec, container, and the per-resolution versions.
	Metadata VideoMetadata `gorm:"type:text;serializer:json" json:"metadata"`
}

// TableName returns the table name for Video.
func (Video) TableName() string {
	return "videos"
}

// Validate performs basic validation on the video.
func (v *Video) Validate() error {
	if v.Title == "" {
		return ErrTitleRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the video and generates a ULID.
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if err := v.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if v.Status == "" {
		v.Status = VideoStatusProcessing
	}
	return v.Validate()
}

// IsPublished returns true once every eligible rendition has been stored.
func (v *Video) IsPublished() bool {
	return v.Status == VideoStatusPublished
}
