// Package tablestore is a table service backed by BadgerDB. It
// implements the tablesdk client surface: atomic single-partition
// transactions, single-row submits and predicate queries, plus the
// table lifecycle operations used by provisioning code.
package tablestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/acksell/nadella/aztables/table"
	"github.com/acksell/nadella/aztables/tablesdk"
)

// Options configures the store.
type Options struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives store and BadgerDB logging. If nil, logging is
	// disabled.
	Logger *zerolog.Logger
}

// Store is a table service on BadgerDB with full ACID guarantees for
// transactional submits.
type Store struct {
	db  *badger.DB
	log zerolog.Logger

	mu     sync.RWMutex
	tables map[string]table.Definition
}

var (
	_ tablesdk.TableClient = &Store{}
	_ tablesdk.TableAdmin  = &Store{}
)

// New opens a store and registers the given table definitions.
func New(opts Options, defs ...table.Definition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
		badgerOpts = badgerOpts.WithLogger(&badgerLogger{log: log})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	tables := make(map[string]table.Definition, len(defs))
	for _, def := range defs {
		tables[def.Name] = def
	}

	return &Store{
		db:     db,
		log:    log,
		tables: tables,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getTable(name string) (table.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.tables[name]
	if !ok {
		return table.Definition{}, fmt.Errorf("table not found: %s", name)
	}
	return def, nil
}

// CreateTableIfNotExists registers a table. Creating an existing table
// is a no-op that keeps the original definition.
func (s *Store) CreateTableIfNotExists(ctx context.Context, def table.Definition) error {
	if def.Name == "" {
		return fmt.Errorf("table name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[def.Name]; ok {
		return nil
	}
	s.tables[def.Name] = def
	s.log.Debug().Str("table", def.Name).Msg("table created")
	return nil
}

// DeleteTable unregisters a table and removes all of its rows.
func (s *Store) DeleteTable(ctx context.Context, name string) error {
	s.mu.Lock()
	if _, ok := s.tables[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("table not found: %s", name)
	}
	delete(s.tables, name)
	s.mu.Unlock()

	prefix := tablePrefix(name)
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// TableExists reports whether a table is registered.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[name]
	return ok, nil
}

// Badger key layout: t\x00<table>\x00<pk>\x00<rk>. Partition and row
// keys cannot contain control characters, so NUL is a safe separator.
func rowKey(tableName, pk, rk string) []byte {
	key := make([]byte, 0, 2+len(tableName)+1+len(pk)+1+len(rk))
	key = append(key, 't', 0)
	key = append(key, tableName...)
	key = append(key, 0)
	key = append(key, pk...)
	key = append(key, 0)
	key = append(key, rk...)
	return key
}

func tablePrefix(tableName string) []byte {
	prefix := make([]byte, 0, 2+len(tableName)+1)
	prefix = append(prefix, 't', 0)
	prefix = append(prefix, tableName...)
	prefix = append(prefix, 0)
	return prefix
}

// badgerLogger adapts zerolog to badger's logger interface.
type badgerLogger struct {
	log zerolog.Logger
}

var _ badger.Logger = &badgerLogger{}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}
