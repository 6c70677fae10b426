package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"media-board/internal/filesystem"
	"media-board/internal/logging"
	"media-board/internal/mediatypes"
	"media-board/internal/metrics"
)

// Top-level directories under the data root.
const (
	UploadsDir    = "uploads"
	PreviewsDir   = "previews"
	ThumbnailsDir = "thumbnails"
)

// ThumbnailLabels are the thumbnail size labels in small-to-large order.
var ThumbnailLabels = []string{"small", "med", "large"}

// Layout addresses every artifact of a content id under one data root:
//
//	<root>/uploads/{image,video,animated}/<id>.<ext>
//	<root>/previews/{image,animated,video}/<id>.<ext>
//	<root>/thumbnails/<id>_{small,med,large}.webp
type Layout struct {
	Root string
}

// NewLayout creates a Layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// UploadDir is the folder holding stored originals of class.
func (l Layout) UploadDir(class mediatypes.MediaClass) string {
	return filepath.Join(l.Root, UploadsDir, string(class))
}

// PreviewDir is the folder holding previews of class.
func (l Layout) PreviewDir(class mediatypes.MediaClass) string {
	return filepath.Join(l.Root, PreviewsDir, string(class))
}

// ThumbnailDir is the folder holding every thumbnail.
func (l Layout) ThumbnailDir() string {
	return filepath.Join(l.Root, ThumbnailsDir)
}

// OriginalPath is where the stored original of id lives.
func (l Layout) OriginalPath(class mediatypes.MediaClass, id, ext string) string {
	return filepath.Join(l.UploadDir(class), id+"."+mediatypes.NormalizeExtension(ext))
}

// PreviewPath is where the preview of id lives.
func (l Layout) PreviewPath(class mediatypes.MediaClass, id, ext string) string {
	return filepath.Join(l.PreviewDir(class), id+"."+mediatypes.NormalizeExtension(ext))
}

// ThumbnailName is the file name of one thumbnail of id.
func ThumbnailName(id, label string) string {
	return id + "_" + label + ".webp"
}

// ThumbnailPath is where one thumbnail of id lives.
func (l Layout) ThumbnailPath(id, label string) string {
	return filepath.Join(l.ThumbnailDir(), ThumbnailName(id, label))
}

// Folders returns every artifact folder in purge order.
func (l Layout) Folders() []string {
	return []string{
		l.UploadDir(mediatypes.ClassImage),
		l.UploadDir(mediatypes.ClassVideo),
		l.UploadDir(mediatypes.ClassAnimated),
		l.PreviewDir(mediatypes.ClassImage),
		l.PreviewDir(mediatypes.ClassAnimated),
		l.PreviewDir(mediatypes.ClassVideo),
		l.ThumbnailDir(),
	}
}

// Ensure creates every artifact folder and checks that the root is writable.
func (l Layout) Ensure() error {
	for _, dir := range l.Folders() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	probe := filepath.Join(l.Root, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("data directory %s is not writable: %w", l.Root, err)
	}
	if err := os.Remove(probe); err != nil {
		logging.Warn("Failed to remove write test file %s: %v", probe, err)
	}
	return nil
}

// FolderStats counts files and bytes per artifact folder. Folders that do
// not exist yet report zero.
func (l Layout) FolderStats() []metrics.FolderStats {
	cfg := filesystem.DefaultRetryConfig()
	var stats []metrics.FolderStats
	for _, dir := range l.Folders() {
		rel, err := filepath.Rel(l.Root, dir)
		if err != nil {
			rel = dir
		}
		s := metrics.FolderStats{Folder: filepath.ToSlash(rel)}

		entries, err := filesystem.ReadDirWithRetry(dir, cfg)
		if err != nil && !os.IsNotExist(err) {
			logging.Debug("Could not read %s for stats: %v", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			s.Files++
			s.Bytes += info.Size()
		}
		stats = append(stats, s)
	}
	return stats
}
