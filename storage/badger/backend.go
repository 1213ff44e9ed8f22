package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Backend owns the badger handle shared by the chunk repository.
type Backend struct {
	db       *badger.DB
	inMemory bool
	logger   *slog.Logger
}

// slogSink routes badger's printf-style log calls into slog. Badger reports
// compaction and flush progress at info level; those are demoted to debug so
// a CLI run at the default level stays quiet.
type slogSink struct {
	logger *slog.Logger
}

var _ badger.Logger = slogSink{}

func (s slogSink) Errorf(format string, args ...any) {
	s.logger.Error(fmt.Sprintf(format, args...))
}

func (s slogSink) Warningf(format string, args ...any) {
	s.logger.Warn(fmt.Sprintf(format, args...))
}

func (s slogSink) Infof(format string, args ...any) {
	s.logger.Debug(fmt.Sprintf(format, args...))
}

func (s slogSink) Debugf(format string, args ...any) {
	s.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBackend opens the chunk database in dir, creating the directory when it
// is missing. An in-memory backend ignores dir and loses everything on Close.
func OpenBackend(dir string, inMemory bool) (*Backend, error) {
	logger := slog.Default().With("component", "badger")

	opts := badger.DefaultOptions("").WithInMemory(true)
	if !inMemory {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(dir)
	}
	// Embeddings are dense floats and barely compress.
	opts = opts.WithCompression(options.None).WithLogger(slogSink{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open chunk database: %w", err)
	}
	logger.Debug("chunk database opened", "dir", dir, "in_memory", inMemory)
	return &Backend{db: db, inMemory: inMemory, logger: logger}, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0755)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// CollectGarbage rewrites value log files until badger finds nothing more
// worth reclaiming. Deleting resources and re-embedding leave stale values
// behind. It is a no-op for in-memory backends.
func (b *Backend) CollectGarbage(discardRatio float64) error {
	if b.inMemory {
		return nil
	}
	rounds := 0
	for {
		err := b.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return err
		}
		rounds++
	}
	b.logger.Debug("value log collected", "rounds", rounds)
	return nil
}

// Close flushes and closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx runs fn inside a transaction that is always discarded afterwards;
// writers must commit explicitly.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}
