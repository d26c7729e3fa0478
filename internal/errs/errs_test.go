package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodedErrorMatchesKind(t *testing.T) {
	sentinel := New(ErrValidation, "invalid_quantity")
	wrapped := fmt.Errorf("add item: %w", sentinel)

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.False(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, "invalid_quantity", Code(wrapped))
	assert.Equal(t, ErrValidation, Kind(wrapped))
}

func TestCodeFallsBackToKind(t *testing.T) {
	err := fmt.Errorf("save: %w", ErrConflict)
	assert.Equal(t, "conflict", Code(err))
	assert.Nil(t, Kind(errors.New("boom")))
	assert.Equal(t, "", Code(errors.New("boom")))
}
