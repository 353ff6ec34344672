package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
)

// Manager implements the StorageManager interface over SQLite, with an
// optional external KV backend (badger) replacing the SQLite-backed one.
type Manager struct {
	db        *SQLiteDB
	company   interfaces.CompanyStorage
	snapshot  interfaces.CrawlSnapshotStorage
	rawJob    interfaces.RawJobStorage
	job       interfaces.JobStorage
	candidate interfaces.CandidateStorage
	match     interfaces.MatchStorage
	run       interfaces.PipelineRunStorage
	queue     interfaces.DiscoveryQueueStorage
	kv        interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewManager creates a new SQLite storage manager. kvOverride, when non-nil,
// replaces the SQLite KV store (the badger-backed KV layer).
func NewManager(logger arbor.ILogger, config *common.SQLiteConfig, kvOverride interfaces.KeyValueStorage) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	kv := kvOverride
	if kv == nil {
		kv = NewKVStorage(db, logger)
	}

	manager := &Manager{
		db:        db,
		company:   NewCompanyStorage(db, logger),
		snapshot:  NewSnapshotStorage(db, logger),
		rawJob:    NewRawJobStorage(db, logger),
		job:       NewJobStorage(db, logger),
		candidate: NewCandidateStorage(db, logger),
		match:     NewMatchStorage(db, logger),
		run:       NewPipelineRunStorage(db, logger),
		queue:     NewDiscoveryQueueStorage(db, logger),
		kv:        kv,
		logger:    logger,
	}

	logger.Info().Msg("Storage manager initialized (company, snapshot, rawJob, job, candidate, match, run, queue, kv)")

	return manager, nil
}

// CompanyStorage returns the company storage interface
func (m *Manager) CompanyStorage() interfaces.CompanyStorage {
	return m.company
}

// CrawlSnapshotStorage returns the crawl snapshot storage interface
func (m *Manager) CrawlSnapshotStorage() interfaces.CrawlSnapshotStorage {
	return m.snapshot
}

// RawJobStorage returns the raw job storage interface
func (m *Manager) RawJobStorage() interfaces.RawJobStorage {
	return m.rawJob
}

// JobStorage returns the canonical job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// CandidateStorage returns the candidate storage interface
func (m *Manager) CandidateStorage() interfaces.CandidateStorage {
	return m.candidate
}

// MatchStorage returns the match storage interface
func (m *Manager) MatchStorage() interfaces.MatchStorage {
	return m.match
}

// PipelineRunStorage returns the pipeline run storage interface
func (m *Manager) PipelineRunStorage() interfaces.PipelineRunStorage {
	return m.run
}

// DiscoveryQueueStorage returns the discovery queue storage interface
func (m *Manager) DiscoveryQueueStorage() interfaces.DiscoveryQueueStorage {
	return m.queue
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.DB()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// LoadVariablesFromFiles loads key/value pairs from TOML files in dirPath
// into the KV store. Each file holds [section] tables with value and
// optional description fields; existing keys are updated.
func (m *Manager) LoadVariablesFromFiles(ctx context.Context, dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug().Str("dir", dirPath).Msg("No keys directory, skipping variable load")
			return nil
		}
		return fmt.Errorf("failed to read keys directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}

		path := filepath.Join(dirPath, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", path).Msg("Failed to read keys file")
			continue
		}

		var sections map[string]struct {
			Value       string `toml:"value"`
			Description string `toml:"description"`
		}
		if err := toml.Unmarshal(data, &sections); err != nil {
			m.logger.Warn().Err(err).Str("path", path).Msg("Failed to parse keys file")
			continue
		}

		for key, section := range sections {
			if section.Value == "" {
				continue
			}
			if err := m.kv.Set(ctx, key, section.Value, section.Description); err != nil {
				m.logger.Warn().Err(err).Str("key", key).Msg("Failed to store key from file")
				continue
			}
			loaded++
		}
	}

	if loaded > 0 {
		m.logger.Info().Int("keys", loaded).Str("dir", dirPath).Msg("Loaded variables from key files")
	}
	return nil
}
