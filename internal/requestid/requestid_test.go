package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_GeneratesWhenMissing(t *testing.T) {
	a := FromContext(context.Background())
	b := FromContext(context.Background())
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
