// Package workspace manages per-job temporary directories for staged
// uploads and intermediate rendition files. All operations are restricted
// to the configured base directory.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// jobDirPrefix namespaces job directories inside the base directory so the
// orphan sweep never touches unrelated files.
const jobDirPrefix = "job-"

// Manager creates and removes job workspaces under a single base directory.
type Manager struct {
	baseDir string
	logger  *slog.Logger
}

// NewManager creates a Manager rooted at baseDir, creating it if needed.
func NewManager(baseDir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0750); err != nil {
		return nil, fmt.Errorf("creating workspace base directory: %w", err)
	}

	return &Manager{baseDir: absPath, logger: logger}, nil
}

// BaseDir returns the absolute path to the workspace root.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Workspace is a job-scoped scratch directory.
type Workspace struct {
	dir     string
	videoID string
	manager *Manager
}

// Acquire creates an exclusive workspace directory for a job. The video ID
// must be a plain identifier; anything resembling a path is rejected. A
// random suffix keeps concurrent acquisitions for the same video disjoint.
func (m *Manager) Acquire(videoID string) (*Workspace, error) {
	if videoID == "" || strings.ContainsAny(videoID, `/\`) || strings.Contains(videoID, "..") {
		return nil, fmt.Errorf("invalid workspace id: %q", videoID)
	}

	dir, err := os.MkdirTemp(m.baseDir, jobDirPrefix+videoID+"-")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	return &Workspace{dir: dir, videoID: videoID, manager: m}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// InputPath returns the staging path for the uploaded source file.
// ext includes the leading dot and may be empty.
func (w *Workspace) InputPath(ext string) string {
	return filepath.Join(w.dir, "input-"+w.videoID+ext)
}

// OutputPath returns the path for a finished rendition file.
func (w *Workspace) OutputPath(resolution string) string {
	return filepath.Join(w.dir, fmt.Sprintf("output-%s-%s.mp4", w.videoID, resolution))
}

// Release removes the workspace directory. With preserve set the directory
// is kept for inspection and only a log line is emitted.
func (w *Workspace) Release(preserve bool) error {
	if preserve {
		w.manager.logger.Info("preserving workspace", slog.String("dir", w.dir))
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("removing workspace: %w", err)
	}
	return nil
}

// CleanupOrphans removes job directories whose last modification is older
// than ttl. Directories left behind by a crashed process are reclaimed on
// the next sweep.
func (m *Manager) CleanupOrphans(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return 0, fmt.Errorf("reading workspace base directory: %w", err)
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), jobDirPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(m.baseDir, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn("failed to remove orphaned workspace",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			continue
		}
		m.logger.Info("removed orphaned workspace", slog.String("dir", dir))
		removed++
	}

	return removed, nil
}
