// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package store

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/models"
)

// recordKey is the single key the full predictive snapshot lives under.
var recordKey = []byte("driftline:predictive:record")

// Storage persists the predictive snapshot.
type Storage interface {
	// Load reads the persisted record. A missing record is not an error;
	// implementations return an empty record.
	Load(ctx context.Context) (*models.Record, error)
	// Save overwrites the persisted record.
	Save(ctx context.Context, rec *models.Record) error
	Close() error
}

// BadgerStorage persists the snapshot as one JSON value in Badger.
type BadgerStorage struct {
	db     *badger.DB
	logger zerolog.Logger
}

// OpenBadger opens (or creates) the Badger database at path.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenBadger(path string, logger zerolog.Logger) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}

	return &BadgerStorage{
		db:     db,
		logger: logger.With().Str("component", "badger-storage").Logger(),
	}, nil
}

// Load implements Storage.
func (s *BadgerStorage) Load(_ context.Context) (*models.Record, error) {
	rec := models.NewRecord()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load predictive record: %w", err)
	}

	s.logger.Debug().
		Int("profiles", len(rec.Profiles)).
		Int("predictions", len(rec.Predictions)).
		Int("value_models", len(rec.ValueModels)).
		Int("history", len(rec.History)).
		Msg("predictive record loaded")

	return rec, nil
}

// Save implements Storage.
func (s *BadgerStorage) Save(_ context.Context, rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal predictive record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey, data)
	})
	if err != nil {
		return fmt.Errorf("save predictive record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying database.
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// MemoryStorage keeps the snapshot in memory only. Used in tests and
// standalone development mode.
type MemoryStorage struct {
	rec *models.Record
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load implements Storage.
func (s *MemoryStorage) Load(_ context.Context) (*models.Record, error) {
	if s.rec == nil {
		return models.NewRecord(), nil
	}
	return s.rec, nil
}

// Save implements Storage.
func (s *MemoryStorage) Save(_ context.Context, rec *models.Record) error {
	s.rec = rec
	return nil
}

// Close implements Storage.
func (s *MemoryStorage) Close() error { return nil }
