package cmd

import (
	"context"
	"errors"

	"github.com/witos44/UserAuthSystem/app/repository"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/sirupsen/logrus"
)

var errMemoryStoreUnsupported = errors.New("this command needs STORAGE_DRIVER=mysql; the memory store lives inside the serve process")

// accountStore bundles the repositories of one storage driver.
type accountStore struct {
	accounts service.AccountStore
	sessions service.SessionStore
	pinger   interface {
		PingContext(ctx context.Context) error
	}
	close func() error
}

func (s *accountStore) PingContext(ctx context.Context) error {
	return s.pinger.PingContext(ctx)
}

func (s *accountStore) Close() error {
	return s.close()
}

func openStore(ctx context.Context, cfg *config.Config) (*accountStore, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		logrus.Warn("Using the in-memory store; all data is lost on exit")
		mem := repository.NewMemoryStore()
		return &accountStore{
			accounts: mem.Accounts(),
			sessions: mem.Sessions(),
			pinger:   mem,
			close:    func() error { return nil },
		}, nil
	}

	db, err := repository.OpenMySQL(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.Storage.MigrateOnStart {
		logrus.Info("Applying database migrations")
		if err = repository.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &accountStore{
		accounts: repository.NewAccountRepository(db),
		sessions: repository.NewSessionRepository(db),
		pinger:   db,
		close:    db.Close,
	}, nil
}
