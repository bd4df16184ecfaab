package models

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class error
	}{
		{"empty question", ErrEmptyQuestion, ErrInvalidInput},
		{"unsupported format", ErrUnsupportedFormat, ErrInvalidInput},
		{"empty document", ErrEmptyDocument, ErrInvalidInput},
		{"ocr required", ErrOCRRequired, ErrInvalidInput},
		{"length mismatch", ErrLengthMismatch, ErrInvariant},
		{"dimension mismatch", ErrDimensionMismatch, ErrInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.class)
			assert.NotErrorIs(t, tt.err, ErrUpstream)
		})
	}
}

func TestUpstream(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Upstream("embed", nil))
	})

	t.Run("wraps provider failure", func(t *testing.T) {
		cause := errors.New("quota exceeded")
		err := Upstream("embed", cause)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "embed")
	})

	t.Run("deadline is upstream", func(t *testing.T) {
		err := Upstream("complete", context.DeadlineExceeded)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("invariant keeps its class", func(t *testing.T) {
		err := Upstream("insert", ErrDimensionMismatch)
		assert.ErrorIs(t, err, ErrInvariant)
		assert.NotErrorIs(t, err, ErrUpstream)
	})
}

func TestBatchValidate(t *testing.T) {
	ok := Batch{Vectors: [][]float32{{1}}, Texts: []string{"a"}}
	assert.NoError(t, ok.Validate())

	bad := Batch{Vectors: [][]float32{{1}}, Texts: []string{"a", "b"}}
	assert.ErrorIs(t, bad.Validate(), ErrLengthMismatch)
}
