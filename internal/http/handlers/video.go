package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/service"
)

// VideoHandler handles video catalog API endpoints.
type VideoHandler struct {
	videos    *service.VideoService
	admission *service.AdmissionService
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(videos *service.VideoService, admission *service.AdmissionService) *VideoHandler {
	return &VideoHandler{
		videos:    videos,
		admission: admission,
	}
}

// Register registers the video routes with the API.
func (h *VideoHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "createVideo",
		Method:        "POST",
		Path:          "/api/v1/videos",
		Summary:       "Create video",
		Description:   "Creates a catalog record and issues a one-time processing ticket for the upload",
		Tags:          []string{"Videos"},
		DefaultStatus: 201,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID:   "issueTicket",
		Method:        "POST",
		Path:          "/api/v1/tickets",
		Summary:       "Issue processing ticket",
		Description:   "Issues a new one-time processing ticket for an existing video",
		Tags:          []string{"Tickets"},
		DefaultStatus: 201,
	}, h.IssueTicket)

	huma.Register(api, huma.Operation{
		OperationID: "listVideos",
		Method:      "GET",
		Path:        "/api/v1/videos",
		Summary:     "List videos",
		Description: "Returns all catalog records",
		Tags:        []string{"Videos"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getVideo",
		Method:      "GET",
		Path:        "/api/v1/videos/{id}",
		Summary:     "Get video",
		Description: "Returns a catalog record by ID",
		Tags:        []string{"Videos"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "deleteVideo",
		Method:      "DELETE",
		Path:        "/api/v1/videos/{id}",
		Summary:     "Delete video",
		Description: "Deletes a catalog record and its stored renditions",
		Tags:        []string{"Videos"},
	}, h.Delete)
}

// CreateVideoInput is the input for creating a video.
type CreateVideoInput struct {
	Body struct {
		Title  string `json:"title" minLength:"1" maxLength:"256" doc:"Video title"`
		UserID string `json:"user_id,omitempty" maxLength:"64" doc:"Uploader identifier"`
	}
}

// CreateVideoOutput is the output for creating a video.
type CreateVideoOutput struct {
	Body struct {
		Video        VideoResponse `json:"video"`
		ProcessingID string        `json:"processing_id" doc:"One-time ticket for the processing request"`
	}
}

// Create creates a catalog record and issues its processing ticket.
func (h *VideoHandler) Create(ctx context.Context, input *CreateVideoInput) (*CreateVideoOutput, error) {
	video, err := h.videos.Create(ctx, input.Body.Title)
	if err != nil {
		if errors.Is(err, models.ErrTitleRequired) {
			return nil, huma.Error400BadRequest("title is required", err)
		}
		return nil, huma.Error500InternalServerError("failed to create video", err)
	}

	ticket, err := h.admission.IssueTicket(ctx, video.ID, input.Body.UserID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to issue processing ticket", err)
	}

	resp := &CreateVideoOutput{}
	resp.Body.Video = VideoFromModel(video)
	resp.Body.ProcessingID = ticket.ProcessingID
	return resp, nil
}

// IssueTicketInput is the input for issuing a processing ticket.
type IssueTicketInput struct {
	Body struct {
		VideoID string `json:"video_id" doc:"Video ID (ULID)"`
		UserID  string `json:"user_id,omitempty" maxLength:"64" doc:"Uploader identifier"`
	}
}

// IssueTicketOutput is the output for issuing a processing ticket.
type IssueTicketOutput struct {
	Body struct {
		ProcessingID string `json:"processing_id" doc:"One-time ticket for the processing request"`
		VideoID      string `json:"video_id"`
	}
}

// IssueTicket issues a fresh one-time ticket for an existing video.
func (h *VideoHandler) IssueTicket(ctx context.Context, input *IssueTicketInput) (*IssueTicketOutput, error) {
	id, err := models.ParseULID(input.Body.VideoID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid video ID format", err)
	}

	if _, err := h.videos.Get(ctx, id); err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("video %s not found", input.Body.VideoID))
		}
		return nil, huma.Error500InternalServerError("failed to get video", err)
	}

	ticket, err := h.admission.IssueTicket(ctx, id, input.Body.UserID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to issue processing ticket", err)
	}

	resp := &IssueTicketOutput{}
	resp.Body.ProcessingID = ticket.ProcessingID
	resp.Body.VideoID = input.Body.VideoID
	return resp, nil
}

// ListVideosInput is the input for listing videos.
type ListVideosInput struct{}

// ListVideosOutput is the output for listing videos.
type ListVideosOutput struct {
	Body struct {
		Videos []VideoResponse `json:"videos"`
	}
}

// List returns all videos.
func (h *VideoHandler) List(ctx context.Context, input *ListVideosInput) (*ListVideosOutput, error) {
	videos, err := h.videos.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list videos", err)
	}

	resp := &ListVideosOutput{}
	resp.Body.Videos = make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		resp.Body.Videos = append(resp.Body.Videos, VideoFromModel(v))
	}
	return resp, nil
}

// GetVideoInput is the input for getting a video.
type GetVideoInput struct {
	ID string `path:"id" doc:"Video ID (ULID)"`
}

// GetVideoOutput is the output for getting a video.
type GetVideoOutput struct {
	Body VideoResponse
}

// GetByID returns a video by ID.
func (h *VideoHandler) GetByID(ctx context.Context, input *GetVideoInput) (*GetVideoOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	video, err := h.videos.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("video %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get video", err)
	}

	return &GetVideoOutput{Body: VideoFromModel(video)}, nil
}

// DeleteVideoInput is the input for deleting a video.
type DeleteVideoInput struct {
	ID string `path:"id" doc:"Video ID (ULID)"`
}

// DeleteVideoOutput is the output for deleting a video.
type DeleteVideoOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Delete removes a video and its stored renditions.
func (h *VideoHandler) Delete(ctx context.Context, input *DeleteVideoInput) (*DeleteVideoOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.videos.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("video %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to delete video", err)
	}

	resp := &DeleteVideoOutput{}
	resp.Body.Message = fmt.Sprintf("video %s deleted", input.ID)
	return resp, nil
}
