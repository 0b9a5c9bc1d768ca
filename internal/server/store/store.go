// Package store persists the office document as a single JSON value.
//
// Every driver replaces the whole document atomically: the file driver via
// temp file and rename, the PostgreSQL driver via a single-row upsert in a
// transaction, the S3 driver via one PutObject. Store adds the policy shared
// by all of them: a missing document is seeded with the default, and a
// corrupt one is logged and overwritten with the default.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/logging"
	"github.com/chinbo/chinbo-server/internal/server/models"
)

// Driver reads and writes the raw document bytes.
type Driver interface {
	// Read returns common.ErrNotFound when nothing has been written yet.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

type Store struct {
	driver   Driver
	defaults models.TokenPair
	logger   logging.Logger
}

// New wraps driver. defaults become the global tokens of a seeded document.
func New(driver Driver, defaults models.TokenPair, l logging.Logger) *Store {
	return &Store{driver: driver, defaults: defaults, logger: l.With("module", "store")}
}

// Load returns the persisted document with every PC offline. A missing
// document is replaced by a fresh default which is persisted before
// returning. A document that fails to parse is logged and overwritten with
// the default; its content is lost.
func (s *Store) Load(ctx context.Context) (*models.Document, error) {
	data, err := s.driver.Read(ctx)
	if errors.Is(err, common.ErrNotFound) {
		s.logger.Info(ctx, "no stored document, seeding default")
		return s.seed(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := s.decode(data)
	if err != nil {
		s.logger.Error(ctx, "stored document is corrupt, replacing with default", "error", err)
		return s.seed(ctx)
	}

	if n := clearPresence(doc); n > 0 {
		s.logger.Warn(ctx, "stored document had pcs marked online, clearing", "count", n)
	}
	return doc, nil
}

// clearPresence marks every PC offline. No connection survives a restart,
// so online flags left by a process that did not stop cleanly are stale.
func clearPresence(doc *models.Document) int {
	n := 0
	for _, o := range doc.Offices {
		for _, pc := range o.Pcs {
			if pc.Online {
				pc.Online = false
				n++
			}
		}
	}
	return n
}

// Persist writes doc in full. Failures wrap common.ErrPersistence.
func (s *Store) Persist(ctx context.Context, doc *models.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", common.ErrPersistence, err)
	}
	if err := s.driver.Write(ctx, data); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) seed(ctx context.Context) (*models.Document, error) {
	doc := models.DefaultDocument(s.defaults)
	if err := s.Persist(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// decode parses data. A missing globalTokens member falls back to the
// configured defaults and a missing offices member to an empty map.
func (s *Store) decode(data []byte) (*models.Document, error) {
	var raw struct {
		GlobalTokens *models.TokenPair         `json:"globalTokens"`
		Offices      map[string]*models.Office `json:"offices"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreCorrupted, err)
	}

	doc := &models.Document{GlobalTokens: s.defaults, Offices: raw.Offices}
	if raw.GlobalTokens != nil {
		doc.GlobalTokens = *raw.GlobalTokens
	}
	doc.Normalize()
	return doc, nil
}
