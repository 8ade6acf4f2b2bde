package cache

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Badger is a Store backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the Badger store.
type BadgerOptions struct {
	// Dir holds the data files; required unless InMemory is set.
	Dir      string
	InMemory bool
	Logger   zerolog.Logger
}

// NewBadger opens a Badger store.
func NewBadger(options BadgerOptions) (*Badger, error) {
	if !options.InMemory && options.Dir == "" {
		return nil, errors.New("cache: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOptions := badger.DefaultOptions(options.Dir)
	if options.InMemory {
		dbOptions = dbOptions.WithInMemory(true)
	}
	dbOptions = dbOptions.WithLogger(badgerLogger{logger: options.Logger})
	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger warnings and errors to zerolog and drops the rest.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.logger.Error().Msgf("badger: "+f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.logger.Warn().Msgf("badger: "+f, v...) }
func (badgerLogger) Infof(string, ...interface{})          {}
func (badgerLogger) Debugf(string, ...interface{})         {}
