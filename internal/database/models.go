package database

import "time"

// MediaRecord is the stored outcome of the last successful upload or
// replace for one content id.
type MediaRecord struct {
	ContentID       string    `json:"contentId"`
	Class           string    `json:"class"`
	OriginalExt     string    `json:"originalExt"`
	PreviewExt      string    `json:"previewExt"`
	PreviewScale    *int      `json:"previewScale"`
	AspectRatio     float64   `json:"aspectRatio"`
	FileSize        int64     `json:"fileSize"`
	PreviewFileSize int64     `json:"previewFileSize"`
	Duration        *float64  `json:"duration,omitempty"`
	HasAudio        *bool     `json:"hasAudio,omitempty"`
	ThumbnailsReady bool      `json:"thumbnailsReady"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Stats summarizes the result store.
type Stats struct {
	Total      int            `json:"total"`
	ByClass    map[string]int `json:"byClass"`
	LastUpload time.Time      `json:"lastUpload,omitzero"`
}
