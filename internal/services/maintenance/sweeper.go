// -----------------------------------------------------------------------
// Upload Sweeper - purges stale uploads the pipeline never consumed
// -----------------------------------------------------------------------

package maintenance

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/common"
)

// Sweeper periodically removes uploaded files that were never cleaned
// up, typically leftovers from a process crash mid-pipeline. Uploads
// consumed by a normal run are deleted by the orchestrator itself.
type Sweeper struct {
	config *common.MaintenanceConfig
	dir    string
	cron   *cron.Cron
	logger arbor.ILogger
}

// NewSweeper creates a new upload sweeper
func NewSweeper(config *common.MaintenanceConfig, uploadDir string, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		config: config,
		dir:    uploadDir,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start begins the scheduled sweeps
func (s *Sweeper) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Upload sweeper disabled")
		return nil
	}

	schedule := s.config.SweepSchedule
	if schedule == "" {
		// Default: top of every hour
		schedule = "0 * * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.RunNow()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Str("dir", s.dir).
		Msg("Upload sweeper started")

	return nil
}

// Stop stops the scheduler
func (s *Sweeper) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Upload sweeper stopped")
}

// RunNow performs one sweep immediately and returns the number of
// files removed.
func (s *Sweeper) RunNow() int {
	maxAge := s.maxAge()
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("dir", s.dir).Msg("Failed to scan upload directory")
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("Failed to remove stale upload")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().
			Int("removed", removed).
			Str("max_age", maxAge.String()).
			Msg("Swept stale uploads")
	}
	return removed
}

func (s *Sweeper) maxAge() time.Duration {
	if d, err := time.ParseDuration(s.config.UploadMaxAge); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}
