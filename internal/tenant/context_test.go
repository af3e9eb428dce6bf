package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, UserIDFromContext(ctx))

	ctx = WithUserID(ctx, "u-123")
	assert.Equal(t, "u-123", UserIDFromContext(ctx))
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "user-abc", Namespace("abc"))

	id, ok := UserIDFromNamespace("user-abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = UserIDFromNamespace("documents")
	assert.False(t, ok)
}
