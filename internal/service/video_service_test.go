package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidplat/renditiond/internal/models"
)

// memVideoRepo is an in-memory VideoRepository for service tests.
type memVideoRepo struct {
	mu     sync.Mutex
	videos map[models.ULID]*models.Video
}

func newMemVideoRepo() *memVideoRepo {
	return &memVideoRepo{videos: make(map[models.ULID]*models.Video)}
}

func (r *memVideoRepo) Create(_ context.Context, video *models.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if video.ID.IsZero() {
		video.ID = models.NewULID()
	}
	if video.Status == "" {
		video.Status = models.VideoStatusProcessing
	}
	r.videos[video.ID] = video
	return nil
}

func (r *memVideoRepo) GetByID(_ context.Context, id models.ULID) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videos[id], nil
}

func (r *memVideoRepo) GetAll(_ context.Context) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Video, 0, len(r.videos))
	for _, v := range r.videos {
		out = append(out, v)
	}
	return out, nil
}

func (r *memVideoRepo) Update(_ context.Context, video *models.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[video.ID] = video
	return nil
}

func (r *memVideoRepo) ApplyRendition(_ context.Context, id models.ULID, version models.VideoVersion, codec, container string, publish bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	video, ok := r.videos[id]
	if !ok {
		return models.ErrVideoNotFound
	}
	video.Metadata.SetVersion(version)
	video.Metadata.Codec = codec
	video.Metadata.Container = container
	video.URL = version.URL
	if publish {
		video.Status = models.VideoStatusPublished
	}
	return nil
}

func (r *memVideoRepo) Delete(_ context.Context, id models.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.videos, id)
	return nil
}

// recordingStore records uploads and deletes.
type recordingStore struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	deleteErr error
}

func (s *recordingStore) Upload(_ context.Context, key, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, key)
	return "https://media.example.com/" + key, nil
}

func (s *recordingStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, key)
	return nil
}

func TestVideoServiceCreate(t *testing.T) {
	svc := NewVideoService(newMemVideoRepo(), &recordingStore{})

	video, err := svc.Create(context.Background(), "launch keynote")
	require.NoError(t, err)
	assert.False(t, video.ID.IsZero())
	assert.Equal(t, models.VideoStatusProcessing, video.Status)

	_, err = svc.Create(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrTitleRequired)
}

func TestVideoServiceGetNotFound(t *testing.T) {
	svc := NewVideoService(newMemVideoRepo(), &recordingStore{})

	_, err := svc.Get(context.Background(), models.NewULID())
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}

func TestVideoServiceDeleteRemovesArtifacts(t *testing.T) {
	repo := newMemVideoRepo()
	store := &recordingStore{}
	svc := NewVideoService(repo, store)
	ctx := context.Background()

	video, err := svc.Create(ctx, "clip")
	require.NoError(t, err)
	require.NoError(t, repo.ApplyRendition(ctx, video.ID, models.VideoVersion{
		Resolution: "480p",
		URL:        "https://bucket.s3.us-east-1.amazonaws.com/abc_480p_x.mp4",
	}, "h264", "mp4", false))
	require.NoError(t, repo.ApplyRendition(ctx, video.ID, models.VideoVersion{
		Resolution: "720p",
		URL:        "https://bucket.s3.us-east-1.amazonaws.com/abc_720p_y.mp4",
	}, "h264", "mp4", true))

	require.NoError(t, svc.Delete(ctx, video.ID))

	assert.ElementsMatch(t, []string{"abc_480p_x.mp4", "abc_720p_y.mp4"}, store.deleted)
	_, err = svc.Get(ctx, video.ID)
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}

func TestVideoServiceDeleteSurvivesStoreFailure(t *testing.T) {
	repo := newMemVideoRepo()
	store := &recordingStore{deleteErr: errors.New("bucket gone")}
	svc := NewVideoService(repo, store)
	ctx := context.Background()

	video, err := svc.Create(ctx, "clip")
	require.NoError(t, err)
	require.NoError(t, repo.ApplyRendition(ctx, video.ID, models.VideoVersion{
		Resolution: "480p",
		URL:        "https://bucket.s3.us-east-1.amazonaws.com/abc_480p_x.mp4",
	}, "h264", "mp4", false))

	// The catalog record still goes away.
	require.NoError(t, svc.Delete(ctx, video.ID))
	_, err = svc.Get(ctx, video.ID)
	assert.ErrorIs(t, err, models.ErrVideoNotFound)
}

func TestVideoServiceDeleteNotFound(t *testing.T) {
	svc := NewVideoService(newMemVideoRepo(), &recordingStore{})
	assert.ErrorIs(t, svc.Delete(context.Background(), models.NewULID()), models.ErrVideoNotFound)
}

func TestArtifactKey(t *testing.T) {
	assert.Equal(t, "abc_480p_x.mp4", artifactKey("https://bucket.s3.us-east-1.amazonaws.com/abc_480p_x.mp4"))
	assert.Equal(t, "", artifactKey(""))
}
