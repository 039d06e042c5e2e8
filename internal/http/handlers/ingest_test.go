package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidplat/renditiond/internal/ffmpeg"
	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/pipeline"
	"github.com/vidplat/renditiond/internal/service"
	"github.com/vidplat/renditiond/internal/workspace"
)

// cannedProber returns a fixed probe result.
type cannedProber struct {
	result *ffmpeg.ProbeResult
}

func (p *cannedProber) Probe(context.Context, string) (*ffmpeg.ProbeResult, error) {
	return p.result, nil
}

// capturePool records submitted jobs and releases their workspaces.
type capturePool struct {
	jobs   []*pipeline.Job
	reject bool
}

func (p *capturePool) Submit(job *pipeline.Job) bool {
	if p.reject {
		return false
	}
	p.jobs = append(p.jobs, job)
	return true
}

type ingestTestEnv struct {
	router    *chi.Mux
	pool      *capturePool
	admission *service.AdmissionService
	videoRepo *mockVideoRepo
}

func newIngestTestEnv(t *testing.T, codec string, maxUpload int64) *ingestTestEnv {
	t.Helper()

	workspaces, err := workspace.NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	videoRepo := newMockVideoRepo()
	videos := service.NewVideoService(videoRepo, &mockStore{})
	admission := service.NewAdmissionService(newMockTicketRepo())
	pool := &capturePool{}

	prober := &cannedProber{result: &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{BitRate: "3000000", Duration: "60.0"},
		Streams: []ffmpeg.ProbeStream{
			{Index: 0, CodecType: "video", CodecName: codec, Width: 1600, Height: 900},
		},
	}}

	ingest := service.NewIngestService(admission, videos, prober, workspaces, pool)

	router := chi.NewRouter()
	NewIngestHandler(ingest, maxUpload, nil).RegisterRoutes(router)

	return &ingestTestEnv{
		router:    router,
		pool:      pool,
		admission: admission,
		videoRepo: videoRepo,
	}
}

func (e *ingestTestEnv) issue(t *testing.T) (models.ULID, string) {
	t.Helper()
	video := &models.Video{Title: "clip"}
	require.NoError(t, e.videoRepo.Create(context.Background(), video))
	ticket, err := e.admission.IssueTicket(context.Background(), video.ID, "user-1")
	require.NoError(t, err)
	return video.ID, ticket.ProcessingID
}

func multipartUpload(t *testing.T, url, processingID, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("processing_id", processingID))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIngestHandler_Process(t *testing.T) {
	env := newIngestTestEnv(t, "h264", 0)
	videoID, processingID := env.issue(t)

	req := multipartUpload(t, "/api/v1/videos/"+videoID.String()+"/process", processingID, "clip.mp4", []byte("bytes"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, videoID.String(), body["video_id"])
	assert.Equal(t, processingID, body["processing_id"])

	require.Len(t, env.pool.jobs, 1)
	assert.Equal(t, videoID, env.pool.jobs[0].VideoID)
}

func TestIngestHandler_ProcessReplayRejected(t *testing.T) {
	env := newIngestTestEnv(t, "h264", 0)
	videoID, processingID := env.issue(t)
	url := "/api/v1/videos/" + videoID.String() + "/process"

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartUpload(t, url, processingID, "clip.mp4", []byte("bytes")))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartUpload(t, url, processingID, "clip.mp4", []byte("bytes")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, env.pool.jobs, 1)
}

func TestIngestHandler_ProcessUnsupportedCodec(t *testing.T) {
	env := newIngestTestEnv(t, "av1", 0)
	videoID, processingID := env.issue(t)

	req := multipartUpload(t, "/api/v1/videos/"+videoID.String()+"/process", processingID, "clip.mkv", []byte("bytes"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, env.pool.jobs)
}

func TestIngestHandler_ProcessQueueFull(t *testing.T) {
	env := newIngestTestEnv(t, "h264", 0)
	env.pool.reject = true
	videoID, processingID := env.issue(t)

	req := multipartUpload(t, "/api/v1/videos/"+videoID.String()+"/process", processingID, "clip.mp4", []byte("bytes"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIngestHandler_ProcessValidation(t *testing.T) {
	env := newIngestTestEnv(t, "h264", 0)
	videoID, _ := env.issue(t)
	url := "/api/v1/videos/" + videoID.String() + "/process"

	t.Run("bad video id", func(t *testing.T) {
		req := multipartUpload(t, "/api/v1/videos/xyz/process", "tok", "clip.mp4", []byte("b"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing processing id", func(t *testing.T) {
		req := multipartUpload(t, url, "", "clip.mp4", []byte("b"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("processing_id", "tok"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, url, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized upload", func(t *testing.T) {
		small := newIngestTestEnv(t, "h264", 64)
		vid, tok := small.issue(t)
		payload := bytes.Repeat([]byte("x"), 4096)

		req := multipartUpload(t, "/api/v1/videos/"+vid.String()+"/process", tok, "clip.mp4", payload)
		rec := httptest.NewRecorder()
		small.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}
