package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/consolekit/pkg/logger"
)

// Store reads and writes session records through a Backend.
type Store struct {
	backend Backend
	ttl     time.Duration
	log     *slog.Logger
}

// NewStore returns a Store writing blobs with ttl. A nil log discards.
func NewStore(backend Backend, ttl time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{backend: backend, ttl: ttl, log: log}
}

// Read returns the record stored under id. It never fails: invalid ids,
// missing blobs, backend errors and corrupt blobs all yield an empty Record.
func (s *Store) Read(ctx context.Context, id string) Record {
	if !IsValidID(id) {
		return Record{}
	}
	blob, err := s.backend.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.WarnContext(ctx, "session backend read failed",
				logger.Component("session"), logger.SessionID(id), logger.Error(err))
		}
		return Record{}
	}
	rec, err := decodeRecord(blob)
	if err != nil {
		s.log.WarnContext(ctx, "discarding corrupt session record",
			logger.Component("session"), logger.SessionID(id),
			logger.Error(errors.Join(ErrCorruptRecord, err)))
		return Record{}
	}
	return rec
}

// Write stores rec under id with the configured TTL.
func (s *Store) Write(ctx context.Context, id string, rec Record) error {
	if !IsValidID(id) {
		return ErrInvalidID
	}
	blob, err := rec.encode()
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, id, blob, s.ttl)
}

// Delete removes the blob under id. Failures are logged, not returned.
func (s *Store) Delete(ctx context.Context, id string) {
	if !IsValidID(id) {
		return
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		s.log.WarnContext(ctx, "session delete failed",
			logger.Component("session"), logger.SessionID(id), logger.Error(err))
	}
}
