package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/CTAG07/markovchain/pkg/markov"
)

// DefaultCacheSize is the number of decoded chains kept in memory by default.
const DefaultCacheSize = 16

// ErrNotFound is returned when a named model does not exist.
var ErrNotFound = errors.New("store: model not found")

// SetupSchema initializes the model table in the provided database. This
// function should be called once on a new database before any other
// operations are performed. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {

	const schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id TEXT PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL,
    contexts INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL,
    data BLOB NOT NULL
);
`

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store persists named Markov chains in a SQLite database. Each model is
// stored as a single row holding the chain's binary encoding. Decoded chains
// are kept in an LRU cache so repeated reads do not pay for decoding.
//
// All methods are safe for concurrent use. Writers are serialized, so Update
// is an atomic read-modify-write with respect to other Store calls.
type Store struct {
	db            *sql.DB
	stmtGetModel  *sql.Stmt
	stmtGetInfo   *sql.Stmt
	stmtGetModels *sql.Stmt
	stmtPutModel  *sql.Stmt
	stmtRemove    *sql.Stmt
	cache         *lru.Cache
	cacheSize     int
	chainOpts     []markov.Option
	mu            sync.Mutex // guards cache and generation
	generation    uint64     // bumped after every committed write
	writeMu       sync.Mutex // serializes Put, Update and Remove
	logger        *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCacheSize sets how many decoded chains are cached. Default: DefaultCacheSize.
func WithCacheSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// WithChainOptions sets options applied to every chain loaded from the
// database, such as markov.WithLogger.
func WithChainOptions(opts ...markov.Option) Option {
	return func(s *Store) {
		s.chainOpts = append(s.chainOpts, opts...)
	}
}

// New creates and returns a new Store. It pre-compiles all necessary SQL
// statements, returning an error if any preparation fails. SetupSchema must
// have been called on db first.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:        db,
		cacheSize: DefaultCacheSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := lru.New(s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create chain cache: %w", err)
	}
	s.cache = cache

	if s.stmtGetModel, err = db.Prepare(`SELECT model_id, model_order, contexts, updated_at, data FROM markov_models WHERE model_name = ?;`); err != nil {
		return nil, err
	}

	if s.stmtGetInfo, err = db.Prepare(`SELECT model_id, model_order, contexts, updated_at FROM markov_models WHERE model_name = ?;`); err != nil {
		s.Close()
		return nil, err
	}

	if s.stmtGetModels, err = db.Prepare(`SELECT model_id, model_name, model_order, contexts, updated_at FROM markov_models ORDER BY model_name;`); err != nil {
		s.Close()
		return nil, err
	}

	if s.stmtPutModel, err = db.Prepare(`
		INSERT INTO markov_models (model_id, model_name, model_order, contexts, updated_at, data) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(model_name) DO UPDATE SET model_order = excluded.model_order, contexts = excluded.contexts, updated_at = excluded.updated_at, data = excluded.data
		RETURNING model_id;`); err != nil {
		s.Close()
		return nil, err
	}

	if s.stmtRemove, err = db.Prepare(`DELETE FROM markov_models WHERE model_name = ?;`); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close releases all prepared SQL statements held by the Store. It does not
// close the database.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{s.stmtGetModel, s.stmtGetInfo, s.stmtGetModels, s.stmtPutModel, s.stmtRemove} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}
