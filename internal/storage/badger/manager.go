package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/common"
	"github.com/audiforge/audiforge/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	books    interfaces.BookStorage
	segments interfaces.SegmentStorage
	timings  interfaces.TimingStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		books:    NewBookStorage(db, logger),
		segments: NewSegmentStorage(db, logger),
		timings:  NewTimingStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Books returns the Book storage interface
func (m *Manager) Books() interfaces.BookStorage {
	return m.books
}

// Segments returns the Segment storage interface
func (m *Manager) Segments() interfaces.SegmentStorage {
	return m.segments
}

// Timings returns the Timing storage interface
func (m *Manager) Timings() interfaces.TimingStorage {
	return m.timings
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}
