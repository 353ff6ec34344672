package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/storage/badger"
	"github.com/ternarybob/hunt/internal/storage/sqlite"
)

// NewStorageManager creates the storage stack: SQLite for the relational
// catalog, badger for the KV layer (secrets, scheduler state).
// When badger cannot be opened the SQLite-backed KV store serves instead.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	var kv interfaces.KeyValueStorage
	var badgerDB *badger.BadgerDB

	badgerDB, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Warn().Err(err).Msg("Badger KV store unavailable, falling back to SQLite KV")
		badgerDB = nil
	} else {
		kv = badger.NewKVStorage(badgerDB, logger)
	}

	manager, err := sqlite.NewManager(logger, &config.Storage.SQLite, kv)
	if err != nil {
		if badgerDB != nil {
			badgerDB.Close()
		}
		return nil, err
	}

	if badgerDB == nil {
		return manager, nil
	}
	return &composite{StorageManager: manager, badgerDB: badgerDB}, nil
}

// composite closes the badger KV store alongside the SQLite manager
type composite struct {
	interfaces.StorageManager
	badgerDB *badger.BadgerDB
}

func (c *composite) Close() error {
	err := c.StorageManager.Close()
	if badgerErr := c.badgerDB.Close(); badgerErr != nil && err == nil {
		err = badgerErr
	}
	return err
}
