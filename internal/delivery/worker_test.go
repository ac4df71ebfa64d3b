package delivery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorker_CalculateBackoff(t *testing.T) {
	config := WorkerConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
	}

	worker := &Worker{config: config}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{"first retry", 1, 1 * time.Second},
		{"second retry", 2, 2 * time.Second},
		{"third retry", 3, 4 * time.Second},
		{"fourth retry", 4, 8 * time.Second},
		{"fifth retry", 5, 16 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, worker.calculateBackoff(tt.attempt))
		})
	}
}

func TestWorker_CalculateBackoff_Capped(t *testing.T) {
	config := WorkerConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	worker := &Worker{config: config}
	assert.Equal(t, 10*time.Second, worker.calculateBackoff(100))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable error", NewRetryableError(errors.New("timeout")), true},
		{"non-retryable error", NewNonRetryableError(errors.New("bad target")), false},
		{"plain error defaults to retry", errors.New("mystery"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewRetryableError(inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "connection reset", err.Error())
}
