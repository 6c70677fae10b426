package artifacts

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"media-board/internal/filesystem"
	"media-board/internal/logging"
	"media-board/internal/metrics"
)

// Attempt is one deletion (or unreadable folder) recorded by Purge.
// Err is nil when the file is gone afterwards.
type Attempt struct {
	Path string
	Err  error
}

// Report lists everything Purge tried, in folder order.
type Report []Attempt

// Deleted returns the paths that no longer exist.
func (r Report) Deleted() []string {
	var out []string
	for _, a := range r {
		if a.Err == nil {
			out = append(out, a.Path)
		}
	}
	return out
}

// Failed returns the attempts that left something behind.
func (r Report) Failed() []Attempt {
	var out []Attempt
	for _, a := range r {
		if a.Err != nil {
			out = append(out, a)
		}
	}
	return out
}

// Manager removes the artifacts of a content id.
type Manager struct {
	layout Layout
	retry  filesystem.RetryConfig
}

// NewManager creates a Manager for layout.
func NewManager(layout Layout) *Manager {
	return &Manager{layout: layout, retry: filesystem.DefaultRetryConfig()}
}

// Layout returns the layout the manager works on.
func (m *Manager) Layout() Layout {
	return m.layout
}

// Purge deletes every artifact of id from every artifact folder. With
// thumbnailsOnly, only the three thumbnail names of id are matched.
//
// Purge never stops early: a folder that cannot be read or a file that
// cannot be removed is recorded in the report and logged, and the rest are
// still processed. Files that vanish concurrently count as deleted, so
// calling Purge twice is safe.
func (m *Manager) Purge(id string, thumbnailsOnly bool) Report {
	scope := "all"
	if thumbnailsOnly {
		scope = "thumbnails"
	}
	metrics.PurgeRunsTotal.WithLabelValues(scope).Inc()

	if id == "" {
		logging.Warn("Refusing to purge artifacts for an empty id")
		return nil
	}

	thumbDir := m.layout.ThumbnailDir()
	var report Report
	for _, dir := range m.layout.Folders() {
		exact := thumbnailsOnly || dir == thumbDir
		report = append(report, m.purgeFolder(dir, id, exact)...)
	}

	for _, a := range report {
		if a.Err != nil {
			metrics.PurgeFilesTotal.WithLabelValues("error").Inc()
			logging.Warn("Failed to remove %s: %v", a.Path, a.Err)
			continue
		}
		metrics.PurgeFilesTotal.WithLabelValues("deleted").Inc()
		logging.Debug("Removed %s", a.Path)
	}
	if n := len(report); n > 0 {
		logging.Info("Purged %d artifact(s) for %s (%d failed)", n, id, len(report.Failed()))
	}
	return report
}

func (m *Manager) purgeFolder(dir, id string, exact bool) []Attempt {
	paths, err := m.matching(dir, id, exact)
	if err != nil {
		return []Attempt{{Path: dir, Err: err}}
	}

	attempts := make([]Attempt, 0, len(paths))
	for _, path := range paths {
		err := filesystem.RemoveWithRetry(path, m.retry)
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		attempts = append(attempts, Attempt{Path: path, Err: err})
	}
	return attempts
}

// Find lists the artifacts id currently has on disk, in folder order.
// A folder that exists but cannot be read is an error, since the answer
// would otherwise be a guess.
func (m *Manager) Find(id string) ([]string, error) {
	if id == "" {
		return nil, nil
	}
	thumbDir := m.layout.ThumbnailDir()
	var found []string
	for _, dir := range m.layout.Folders() {
		paths, err := m.matching(dir, id, dir == thumbDir)
		if err != nil {
			return found, err
		}
		found = append(found, paths...)
	}
	return found, nil
}

// matching returns the files in dir that belong to id. A missing folder
// holds nothing.
func (m *Manager) matching(dir, id string, exact bool) ([]string, error) {
	entries, err := filesystem.ReadDirWithRetry(dir, m.retry)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		matched := matchesPrefix(name, id)
		if exact {
			matched = matchesThumbnail(name, id)
		}
		if matched {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}

// matchesPrefix reports whether name is "<id>.<ext>" with a single
// extension. Id 12 must match neither 123.png nor 12.5.gif, which is the
// original of id 12.5.
func matchesPrefix(name, id string) bool {
	rest, ok := strings.CutPrefix(name, id+".")
	return ok && !strings.Contains(rest, ".")
}

func matchesThumbnail(name, id string) bool {
	for _, label := range ThumbnailLabels {
		if name == ThumbnailName(id, label) {
			return true
		}
	}
	return false
}
