package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidplat/renditiond/internal/ffmpeg"
	"github.com/vidplat/renditiond/internal/models"
	"github.com/vidplat/renditiond/internal/pipeline"
	"github.com/vidplat/renditiond/internal/workspace"
)

// stubProber returns a canned probe result.
type stubProber struct {
	result *ffmpeg.ProbeResult
	err    error
}

func (p *stubProber) Probe(context.Context, string) (*ffmpeg.ProbeResult, error) {
	return p.result, p.err
}

// stubPool captures submitted jobs.
type stubPool struct {
	jobs   []*pipeline.Job
	reject bool
}

func (p *stubPool) Submit(job *pipeline.Job) bool {
	if p.reject {
		return false
	}
	p.jobs = append(p.jobs, job)
	return true
}

func probeResult(codec string, width, height int, bitrate string) *ffmpeg.ProbeResult {
	return &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{BitRate: bitrate, Duration: "60.0"},
		Streams: []ffmpeg.ProbeStream{
			{Index: 0, CodecType: "video", CodecName: codec, Width: width, Height: height},
			{Index: 1, CodecType: "audio", CodecName: "aac"},
		},
	}
}

type ingestFixture struct {
	svc        *IngestService
	admission  *AdmissionService
	videos     *VideoService
	pool       *stubPool
	workspaces *workspace.Manager
}

func newIngestFixture(t *testing.T, prober SourceProber, pool *stubPool) *ingestFixture {
	t.Helper()

	workspaces, err := workspace.NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	admission := NewAdmissionService(newMemTicketRepo())
	videos := NewVideoService(newMemVideoRepo(), &recordingStore{})

	return &ingestFixture{
		svc:        NewIngestService(admission, videos, prober, workspaces, pool),
		admission:  admission,
		videos:     videos,
		pool:       pool,
		workspaces: workspaces,
	}
}

func (f *ingestFixture) issue(t *testing.T) (models.ULID, string) {
	t.Helper()
	video, err := f.videos.Create(context.Background(), "clip")
	require.NoError(t, err)
	ticket, err := f.admission.IssueTicket(context.Background(), video.ID, "user-1")
	require.NoError(t, err)
	return video.ID, ticket.ProcessingID
}

func TestIngestStartProcessing(t *testing.T) {
	pool := &stubPool{}
	f := newIngestFixture(t, &stubProber{result: probeResult("h264", 1600, 900, "3000000")}, pool)
	videoID, processingID := f.issue(t)

	src := strings.NewReader("fake video bytes")
	require.NoError(t, f.svc.StartProcessing(context.Background(), videoID, processingID, src, "clip.mov"))

	require.Len(t, pool.jobs, 1)
	job := pool.jobs[0]
	assert.Equal(t, videoID, job.VideoID)
	assert.Equal(t, "h264", job.Source.Codec)
	assert.Equal(t, 900, job.Source.Height)
	assert.Equal(t, 3000, job.Source.BitrateKbps)

	// The upload is staged inside the workspace with its extension kept.
	assert.True(t, strings.HasSuffix(job.InputPath, ".mov"))
	data, err := os.ReadFile(job.InputPath)
	require.NoError(t, err)
	assert.Equal(t, "fake video bytes", string(data))
}

func TestIngestRejectsUsedTicket(t *testing.T) {
	pool := &stubPool{}
	f := newIngestFixture(t, &stubProber{result: probeResult("h264", 1280, 720, "2000000")}, pool)
	videoID, processingID := f.issue(t)

	ctx := context.Background()
	require.NoError(t, f.svc.StartProcessing(ctx, videoID, processingID, strings.NewReader("a"), "a.mp4"))

	err := f.svc.StartProcessing(ctx, videoID, processingID, strings.NewReader("a"), "a.mp4")
	assert.ErrorIs(t, err, models.ErrTicketInvalid)
	assert.Len(t, pool.jobs, 1)
}

func TestIngestRejectsUnsupportedCodec(t *testing.T) {
	pool := &stubPool{}
	f := newIngestFixture(t, &stubProber{result: probeResult("vp9", 1920, 1080, "4000000")}, pool)
	videoID, processingID := f.issue(t)

	err := f.svc.StartProcessing(context.Background(), videoID, processingID, strings.NewReader("a"), "a.webm")
	assert.ErrorIs(t, err, models.ErrUnsupportedCodec)
	assert.Empty(t, pool.jobs)

	// No workspace survives a rejected upload.
	entries, err := os.ReadDir(f.workspaces.BaseDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngestRejectsFileWithoutVideoStream(t *testing.T) {
	result := &ffmpeg.ProbeResult{
		Format:  ffmpeg.ProbeFormat{BitRate: "128000"},
		Streams: []ffmpeg.ProbeStream{{Index: 0, CodecType: "audio", CodecName: "mp3"}},
	}
	pool := &stubPool{}
	f := newIngestFixture(t, &stubProber{result: result}, pool)
	videoID, processingID := f.issue(t)

	err := f.svc.StartProcessing(context.Background(), videoID, processingID, strings.NewReader("a"), "a.mp3")
	assert.ErrorIs(t, err, models.ErrNoVideoStream)
	assert.Empty(t, pool.jobs)
}

func TestIngestRejectsUnknownVideo(t *testing.T) {
	pool := &stubPool{}
	f := newIngestFixture(t, &stubProber{result: probeResult("h264", 1280, 720, "2000000")}, pool)

	orphanVideoID := models.NewULID()
	ticket, err := f.admission.IssueTicket(context.Background(), orphanVideoID, "user-1")
	require.NoError(t, err)

	err = f.svc.StartProcessing(context.Background(), orphanVideoID, ticket.ProcessingID, strings.NewReader("a"), "a.mp4")
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}

func TestIngestQueueFull(t *testing.T) {
	pool := &stubPool{reject: true}
	f := newIngestFixture(t, &stubProber{result: probeResult("h264", 1280, 720, "2000000")}, pool)
	videoID, processingID := f.issue(t)

	err := f.svc.StartProcessing(context.Background(), videoID, processingID, strings.NewReader("a"), "a.mp4")
	assert.ErrorIs(t, err, models.ErrPipelineBusy)

	entries, err := os.ReadDir(f.workspaces.BaseDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
