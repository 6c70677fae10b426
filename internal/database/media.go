package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no record exists for a content id.
var ErrNotFound = errors.New("media record not found")

// SaveMedia inserts or replaces the record for rec.ContentID. created_at
// survives replacement; updated_at is set to now.
func (d *Database) SaveMedia(ctx context.Context, rec *MediaRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_media", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	INSERT INTO media (content_id, class, original_ext, preview_ext, preview_scale, aspect_ratio,
		file_size, preview_file_size, duration, has_audio, thumbnails_ready, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(content_id) DO UPDATE SET
		class = excluded.class,
		original_ext = excluded.original_ext,
		preview_ext = excluded.preview_ext,
		preview_scale = excluded.preview_scale,
		aspect_ratio = excluded.aspect_ratio,
		file_size = excluded.file_size,
		preview_file_size = excluded.preview_file_size,
		duration = excluded.duration,
		has_audio = excluded.has_audio,
		thumbnails_ready = excluded.thumbnails_ready,
		updated_at = strftime('%s', 'now')
	`

	var scale sql.NullInt64
	if rec.PreviewScale != nil {
		scale = sql.NullInt64{Int64: int64(*rec.PreviewScale), Valid: true}
	}
	var duration sql.NullFloat64
	if rec.Duration != nil {
		duration = sql.NullFloat64{Float64: *rec.Duration, Valid: true}
	}
	var audio sql.NullBool
	if rec.HasAudio != nil {
		audio = sql.NullBool{Bool: *rec.HasAudio, Valid: true}
	}

	_, err = d.db.ExecContext(ctx, query,
		rec.ContentID,
		rec.Class,
		rec.OriginalExt,
		rec.PreviewExt,
		scale,
		rec.AspectRatio,
		rec.FileSize,
		rec.PreviewFileSize,
		duration,
		audio,
		rec.ThumbnailsReady,
	)
	if err != nil {
		err = fmt.Errorf("save media %q: %w", rec.ContentID, err)
	}
	return err
}

// GetMedia returns the record for contentID, or ErrNotFound.
func (d *Database) GetMedia(ctx context.Context, contentID string) (*MediaRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_media", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT content_id, class, original_ext, preview_ext, preview_scale, aspect_ratio,
		file_size, preview_file_size, duration, has_audio, thumbnails_ready, created_at, updated_at
	FROM media WHERE content_id = ?
	`

	var (
		rec                  MediaRecord
		scale                sql.NullInt64
		duration             sql.NullFloat64
		audio                sql.NullBool
		createdAt, updatedAt int64
	)
	err = d.db.QueryRowContext(ctx, query, contentID).Scan(
		&rec.ContentID, &rec.Class, &rec.OriginalExt, &rec.PreviewExt, &scale, &rec.AspectRatio,
		&rec.FileSize, &rec.PreviewFileSize, &duration, &audio, &rec.ThumbnailsReady, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// A missing row is not a query failure.
		err = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if scale.Valid {
		v := int(scale.Int64)
		rec.PreviewScale = &v
	}
	if duration.Valid {
		rec.Duration = &duration.Float64
	}
	if audio.Valid {
		rec.HasAudio = &audio.Bool
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// DeleteMedia removes the record for contentID. It reports whether a row
// existed.
func (d *Database) DeleteMedia(ctx context.Context, contentID string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_media", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM media WHERE content_id = ?", contentID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetStats counts stored records per class and reads the last upload time.
func (d *Database) GetStats(ctx context.Context) (Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stats", start, err) }()

	stats := Stats{ByClass: make(map[string]int)}

	d.mu.RLock()
	qctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	rows, err := d.db.QueryContext(qctx, "SELECT class, COUNT(*) FROM media GROUP BY class")
	if err != nil {
		cancel()
		d.mu.RUnlock()
		return stats, err
	}
	for rows.Next() {
		var class string
		var n int
		if err = rows.Scan(&class, &n); err != nil {
			break
		}
		stats.ByClass[class] = n
		stats.Total += n
	}
	if err == nil {
		err = rows.Err()
	}
	_ = rows.Close()
	cancel()
	d.mu.RUnlock()
	if err != nil {
		return stats, err
	}

	stats.LastUpload, err = d.GetLastUpload(ctx)
	return stats, err
}
