package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationErrorf_FormatsMessage(t *testing.T) {
	err := NewValidationErrorf("forecastHorizon must be between 1 and %d, got %d", 520, 600)

	var validation *ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "forecastHorizon must be between 1 and 520, got 600", validation.Message)
	assert.Equal(t, validation.Message, err.Error())
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct", NewValidationError("unknown model family \"lstm\""), true},
		{"wrapped", fmt.Errorf("analyze UNRATE: %w", NewValidationError("testLength must be positive")), true},
		{"joined", errors.Join(context.Canceled, NewValidationError("bad window")), true},
		{"other error", errors.New("fred unavailable"), false},
		{"deadline", context.DeadlineExceeded, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}
