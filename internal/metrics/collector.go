package metrics

import (
	"time"

	"media-board/internal/logging"
)

// FolderStats is the file count and byte total of one artifact folder.
type FolderStats struct {
	Folder string
	Files  int
	Bytes  int64
}

// StatsProvider reports artifact folder usage.
type StatsProvider interface {
	FolderStats() []FolderStats
}

// Collector periodically samples artifact folder usage into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	var files int
	var bytes int64
	for _, s := range c.statsProvider.FolderStats() {
		ArtifactFiles.WithLabelValues(s.Folder).Set(float64(s.Files))
		ArtifactBytes.WithLabelValues(s.Folder).Set(float64(s.Bytes))
		files += s.Files
		bytes += s.Bytes
	}

	logging.Debug("Metrics collected: artifact files=%d, bytes=%d", files, bytes)
}
