package session

import "errors"

var (
	ErrNotFound        = errors.New("session.not_found")
	ErrInvalidID       = errors.New("session.invalid_id")
	ErrIDGeneration    = errors.New("session.id_generation_failed")
	ErrBackend         = errors.New("session.backend_failure")
	ErrCorruptRecord   = errors.New("session.corrupt_record")
	ErrInvalidS3Config = errors.New("session.invalid_s3_config")
)
