package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessingTicket is a single-use admission token for the transcode
// pipeline. A ticket is issued before upload and consumed exactly once when
// processing starts; a second consume attempt is rejected.
type ProcessingTicket struct {
	BaseModel

	// ProcessingID is the opaque token handed to the client.
	ProcessingID string `gorm:"not null;uniqueIndex;size:36" json:"processing_id"`

	// VideoID is the catalog record this ticket admits processing for.
	VideoID ULID `gorm:"not null;index;size:26" json:"video_id"`

	// UserID identifies the uploader that requested the ticket.
	UserID string `gorm:"size:64" json:"user_id,omitempty"`

	// Used flips to true when the ticket is consumed.
	Used bool `gorm:"not null;default:false;index" json:"used"`

	// UsedAt records when the ticket was consumed.
	UsedAt *Time `json:"used_at,omitempty"`
}

// TableName returns the table name for ProcessingTicket.
func (ProcessingTicket) TableName() string {
	return "processing_tickets"
}

// NewProcessingTicket creates an unused ticket with a fresh token.
func NewProcessingTicket(videoID ULID, userID string) *ProcessingTicket {
	return &ProcessingTicket{
		ProcessingID: uuid.NewString(),
		VideoID:      videoID,
		UserID:       userID,
	}
}

// BeforeCreate is a GORM hook that fills in the token and ULID.
func (t *ProcessingTicket) BeforeCreate(tx *gorm.DB) error {
	if err := t.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if t.ProcessingID == "" {
		t.ProcessingID = uuid.NewString()
	}
	return nil
}

// MarkUsed records consumption of the ticket.
func (t *ProcessingTicket) MarkUsed() {
	t.Used = true
	now := Now()
	t.UsedAt = &now
}
