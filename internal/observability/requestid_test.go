package observability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTrip(t *testing.T) {
	id := NewRequestID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), id)
	assert.Equal(t, id, RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
