package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/CTAG07/markovchain/pkg/markov"
)

// ModelInfo holds the metadata for a stored model.
type ModelInfo struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	Contexts  int       `json:"contexts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Put saves chain under name, replacing any existing model of that name. A
// new model gets a fresh ULID; replacing a model keeps its ID.
func (s *Store) Put(ctx context.Context, name string, chain *markov.Chain) (ModelInfo, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.put(ctx, name, chain)
}

// put does the work of Put. The caller must hold writeMu.
func (s *Store) put(ctx context.Context, name string, chain *markov.Chain) (ModelInfo, error) {
	data, err := chain.MarshalBinary()
	if err != nil {
		return ModelInfo{}, err
	}

	info := ModelInfo{
		Name:      name,
		Order:     chain.Order(),
		Contexts:  chain.Len(),
		UpdatedAt: time.Now().UTC(),
	}
	err = s.stmtPutModel.QueryRowContext(ctx, ulid.Make().String(), name, info.Order, info.Contexts,
		info.UpdatedAt.Format(time.RFC3339Nano), data).Scan(&info.Id)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not save model '%s': %w", name, err)
	}

	s.mu.Lock()
	s.generation++
	s.cache.Add(name, chain.Clone())
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.String("model_id", info.Id),
		slog.Int("order", info.Order),
		slog.Int("contexts", info.Contexts),
		slog.Int("bytes", len(data)),
	)
	return info, nil
}

// Get returns the chain stored under name. The returned chain is a private
// copy; modifying it does not affect the store until it is passed to Put.
func (s *Store) Get(ctx context.Context, name string) (*markov.Chain, error) {
	chain, generation, ok := s.cached(name)
	if ok {
		return chain, nil
	}

	var (
		info      ModelInfo
		updatedAt string
		data      []byte
	)
	err := s.stmtGetModel.QueryRowContext(ctx, name).Scan(&info.Id, &info.Order, &info.Contexts, &updatedAt, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, name)
		}
		return nil, fmt.Errorf("could not read model '%s': %w", name, err)
	}

	chain, err = markov.Load(bytes.NewReader(data), s.chainOpts...)
	if err != nil {
		return nil, fmt.Errorf("could not load model '%s': %w", name, err)
	}

	s.logger.DebugContext(ctx, "Model loaded from database",
		slog.String("model_name", name),
		slog.String("model_id", info.Id),
		slog.Int("contexts", chain.Len()),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	// A write committed since the lookup may have made this row stale.
	if s.generation == generation {
		s.cache.Add(name, chain)
		return chain.Clone(), nil
	}
	return chain, nil
}

// cached returns a copy of the cached chain for name, if any. On a miss it
// returns the write generation to check before caching a freshly read row.
func (s *Store) cached(name string) (*markov.Chain, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(name)
	if !ok {
		return nil, s.generation, false
	}
	return v.(*markov.Chain).Clone(), s.generation, true
}

// Update applies fn to the chain stored under name and saves the result.
// If the model does not exist and order is positive, fn receives a new
// empty chain of that order; otherwise ErrNotFound is returned. If fn
// returns an error nothing is saved.
//
// Update, Put and Remove are serialized, and Get never caches a row read
// before a later write committed, so fn always starts from the last
// committed chain and concurrent writers never lose each other's changes.
func (s *Store) Update(ctx context.Context, name string, order int, fn func(*markov.Chain) error) (ModelInfo, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	chain, err := s.Get(ctx, name)
	if errors.Is(err, ErrNotFound) && order > 0 {
		chain, err = markov.NewChecked(order, s.chainOpts...)
	}
	if err != nil {
		return ModelInfo{}, err
	}

	if err = fn(chain); err != nil {
		return ModelInfo{}, err
	}
	return s.put(ctx, name, chain)
}

// Info retrieves the metadata for a single model specified by name.
func (s *Store) Info(ctx context.Context, name string) (ModelInfo, error) {
	info := ModelInfo{Name: name}
	var updatedAt string
	err := s.stmtGetInfo.QueryRowContext(ctx, name).Scan(&info.Id, &info.Order, &info.Contexts, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModelInfo{}, fmt.Errorf("%w: '%s'", ErrNotFound, name)
		}
		return ModelInfo{}, err
	}
	if info.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return ModelInfo{}, fmt.Errorf("bad timestamp for model '%s': %w", name, err)
	}
	return info, nil
}

// List retrieves metadata for all stored models, ordered by name.
func (s *Store) List(ctx context.Context) ([]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make([]ModelInfo, 0)
	for rows.Next() {
		var info ModelInfo
		var updatedAt string
		if err = rows.Scan(&info.Id, &info.Name, &info.Order, &info.Contexts, &updatedAt); err != nil {
			return nil, err
		}
		if info.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("bad timestamp for model '%s': %w", info.Name, err)
		}
		models = append(models, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// Remove deletes the model stored under name. Removing a model that does not
// exist returns ErrNotFound.
func (s *Store) Remove(ctx context.Context, name string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.stmtRemove.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to remove model '%s': %w", name, err)
	}

	s.mu.Lock()
	s.generation++
	s.cache.Remove(name)
	s.mu.Unlock()

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: '%s'", ErrNotFound, name)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", name),
	)
	return nil
}
