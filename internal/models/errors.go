package models

import "errors"

// Common domain errors.
var (
	// ErrTicketInvalid indicates a processing ticket that does not exist or
	// was already consumed.
	ErrTicketInvalid = errors.New("processing ticket not found or already used")

	// ErrVideoNotFound indicates the referenced video record does not exist.
	ErrVideoNotFound = errors.New("video not found")

	// ErrUnsupportedCodec indicates a source file whose video codec cannot
	// be ingested.
	ErrUnsupportedCodec = errors.New("unsupported video codec")

	// ErrNoVideoStream indicates a probed file without any video stream.
	ErrNoVideoStream = errors.New("no video stream found")

	// ErrTitleRequired indicates a required title field is empty.
	ErrTitleRequired = errors.New("title is required")

	// ErrPipelineBusy indicates the transcode queue cannot accept more jobs.
	ErrPipelineBusy = errors.New("transcode pipeline is at capacity")
)
