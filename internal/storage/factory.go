package storage

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vitaliisemenov/msg-store/internal/config"
	"github.com/vitaliisemenov/msg-store/internal/core"
	"github.com/vitaliisemenov/msg-store/internal/storage/leveldb"
	"github.com/vitaliisemenov/msg-store/internal/storage/memory"
)

// Backend names accepted in the config file.
const (
	BackendMem     = "mem"
	BackendLevelDB = "leveldb"
)

// NewMsgStorage creates the persistence backend named by cfg.Database.
// A LevelDB open is retried briefly with exponential backoff: the
// previous process may still hold the directory lock during a rolling
// restart.
func NewMsgStorage(cfg *config.Config, logger *slog.Logger) (core.MsgStorage, error) {
	switch cfg.Database {
	case BackendMem, "":
		return memory.NewMsgStorage(logger), nil

	case BackendLevelDB:
		var db core.MsgStorage
		open := func() error {
			var err error
			db, err = leveldb.NewMsgStorage(cfg.LevelDBPath, logger)
			return err
		}
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 100 * time.Millisecond
		bo.MaxElapsedTime = 5 * time.Second
		if err := backoff.Retry(open, bo); err != nil {
			return nil, &ErrStorageInitFailed{Backend: BackendLevelDB, Cause: err}
		}
		logger.Info("message storage ready", "backend", BackendLevelDB, "path", cfg.LevelDBPath)
		return db, nil

	default:
		return nil, &ErrUnknownBackend{Backend: cfg.Database}
	}
}
