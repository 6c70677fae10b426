package handlers

import (
	"time"

	"media-board/internal/database"
	"media-board/internal/pipeline"
	"media-board/internal/startup"
)

// MemoryGauge reports whether new uploads are being held back.
type MemoryGauge interface {
	IsPaused() bool
}

// Handlers serves the media API on top of the upload pipeline and the
// result store.
type Handlers struct {
	orch      *pipeline.Orchestrator
	db        *database.Database
	memory    MemoryGauge
	maxUpload int64
	started   time.Time
}

// New creates the API handlers. memory may be nil.
func New(orch *pipeline.Orchestrator, db *database.Database, memory MemoryGauge, config *startup.Config) *Handlers {
	maxUpload := config.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = startup.DefaultMaxUploadSize
	}
	return &Handlers{
		orch:      orch,
		db:        db,
		memory:    memory,
		maxUpload: maxUpload,
		started:   time.Now(),
	}
}
