package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "simple validation error",
			field:    "url",
			message:  "URL is required",
			expected: "validation error on field 'url': URL is required",
		},
		{
			name:     "empty field name",
			field:    "",
			message:  "test message",
			expected: "validation error on field '': test message",
		},
		{
			name:     "empty message",
			field:    "category",
			message:  "",
			expected: "validation error on field 'category': ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{Field: tt.field, Message: tt.message}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := fmt.Errorf("load registry: %w", &ValidationError{Field: "url", Message: "bad"})

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrUnknownCategory))

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "url", verr.Field)
}
