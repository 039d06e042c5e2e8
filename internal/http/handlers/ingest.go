package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/service"
)

// multipartMemoryLimit is how much of an upload is held in memory before
// spilling to disk.
const multipartMemoryLimit = 32 << 20

// IngestHandler handles the multipart upload that starts a transcode job.
// This uses Chi directly because Huma doesn't handle multipart file uploads
// well.
type IngestHandler struct {
	ingest        *service.IngestService
	maxUploadSize int64
	logger        *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(ingest *service.IngestService, maxUploadSize int64, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{
		ingest:        ingest,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// RegisterRoutes registers the ingest route on the router.
func (h *IngestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/videos/{id}/process", h.Process)
}

// Process admits an upload and hands it to the background pipeline. The
// response is returned as soon as the source file is staged and validated;
// transcoding continues after the request ends.
func (h *IngestHandler) Process(w http.ResponseWriter, r *http.Request) {
	videoID, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, "invalid video ID", http.StatusBadRequest)
		return
	}

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSONError(w, fmt.Sprintf("upload exceeds limit of %d bytes", maxBytesErr.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, fmt.Sprintf("failed to parse form: %v", err), http.StatusBadRequest)
		return
	}

	processingID := r.FormValue("processing_id")
	if processingID == "" {
		writeJSONError(w, "processing_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, fmt.Sprintf("failed to get file: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := h.ingest.StartProcessing(r.Context(), videoID, processingID, file, header.Filename); err != nil {
		h.writeIngestError(w, r, videoID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":        "processing",
		"video_id":      videoID.String(),
		"processing_id": processingID,
	})
}

// writeIngestError maps admission failures to client status codes.
func (h *IngestHandler) writeIngestError(w http.ResponseWriter, r *http.Request, videoID models.ULID, err error) {
	switch {
	case errors.Is(err, models.ErrTicketInvalid):
		writeJSONError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, models.ErrVideoNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrUnsupportedCodec), errors.Is(err, models.ErrNoVideoStream):
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrPipelineBusy):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.ErrorContext(r.Context(), "ingest failed",
			slog.String("video_id", videoID.String()),
			slog.String("error", err.Error()))
		writeJSONError(w, "failed to start processing", http.StatusInternalServerError)
	}
}
