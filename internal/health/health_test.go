package health

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestChecker_AllOK(t *testing.T) {
	c := NewChecker(zerolog.New(os.Stderr))
	c.Register("storage", func(ctx context.Context) Status { return StatusOK })
	c.Register("cache", func(ctx context.Context) Status { return StatusDegraded })

	results := c.RunAll(context.Background())
	assert.Equal(t, StatusOK, results["storage"])
	assert.Equal(t, StatusDegraded, results["cache"])
	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_DownDependencyBlocksReadiness(t *testing.T) {
	c := NewChecker(zerolog.New(os.Stderr))
	c.Register("storage", func(ctx context.Context) Status { return StatusDown })

	assert.False(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecksIsReady(t *testing.T) {
	c := NewChecker(zerolog.New(os.Stderr))
	assert.True(t, c.IsReady(context.Background()))
}
