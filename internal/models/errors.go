package models

import (
	"errors"
	"fmt"
)

// Error classes. Every specific error below wraps exactly one of them.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream unavailable")
	ErrInvariant    = errors.New("invariant violation")
)

var (
	ErrEmptyQuestion     = fmt.Errorf("%w: question cannot be empty", ErrInvalidInput)
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file type", ErrInvalidInput)
	ErrNotFound          = fmt.Errorf("%w: file not found", ErrInvalidInput)
	ErrReadError         = fmt.Errorf("%w: failed to read file", ErrInvalidInput)
	ErrEmptyDocument     = fmt.Errorf("%w: no text extracted", ErrInvalidInput)
	ErrNoChunksProduced  = fmt.Errorf("%w: no text chunks generated", ErrInvalidInput)
	ErrOCRRequired       = fmt.Errorf("%w: OCR required but OCR execution is not implemented", ErrInvalidInput)

	ErrLengthMismatch      = fmt.Errorf("%w: embeddings and texts length mismatch", ErrInvariant)
	ErrDimensionMismatch   = fmt.Errorf("%w: vector dimension mismatch", ErrInvariant)
	ErrGenerationCommitted = fmt.Errorf("%w: generation is already committed", ErrInvariant)
)

// Upstream marks err as a collaborator failure. Invariant violations reported
// by a collaborator keep their class.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvariant) || errors.Is(err, ErrUpstream) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
