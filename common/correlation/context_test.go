package correlation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestContextWithRequestID_PreservesExplicitID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	require.Equal(t, "req-123", RequestID(ctx))
}

func TestContextWithRequestID_GeneratesWhenMissing(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "")

	id := RequestID(ctx)
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestRequestID_EmptyWithoutValue(t *testing.T) {
	require.Empty(t, RequestID(context.Background()))
	require.Empty(t, RequestID(nil)) //nolint:staticcheck // nil context tolerance is part of the contract
}

func TestContextWithRequestID_DerivesNewContext(t *testing.T) {
	parent := context.Background()
	child := ContextWithRequestID(parent, "req-a")

	require.Empty(t, RequestID(parent))
	require.Equal(t, "req-a", RequestID(child))

	// Re-stamping derives again instead of mutating.
	grandchild := ContextWithRequestID(child, "req-b")
	require.Equal(t, "req-a", RequestID(child))
	require.Equal(t, "req-b", RequestID(grandchild))
}
