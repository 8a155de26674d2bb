package aggregation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsufficientHistoryError(t *testing.T) {
	var err error = &InsufficientHistoryError{Required: 14, Actual: 9}
	wrapped := fmt.Errorf("forecast: %w", err)

	require.ErrorIs(t, wrapped, ErrInsufficientHistory)
	require.NotErrorIs(t, wrapped, ErrInvalidSpecification)
	require.Contains(t, err.Error(), "need at least 14 points, got 9")

	var target *InsufficientHistoryError
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, 14, target.Required)
	require.Equal(t, 9, target.Actual)
}

func TestInvalidSpecf(t *testing.T) {
	err := InvalidSpecf("unknown dimension %q", "color")
	require.ErrorIs(t, err, ErrInvalidSpecification)
	require.Equal(t, `invalid specification: unknown dimension "color"`, err.Error())
}
