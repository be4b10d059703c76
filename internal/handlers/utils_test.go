package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDFromContext(t *testing.T) {
	id, err := userIDFromContext(context.WithValue(context.Background(), contextSubjectKey, " 42 "))
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for name, value := range map[string]any{
		"missing":  nil,
		"non-int":  "abc",
		"zero":     "0",
		"negative": "-3",
		"raw int":  7,
	} {
		ctx := context.Background()
		if value != nil {
			ctx = context.WithValue(ctx, contextSubjectKey, value)
		}
		_, err := userIDFromContext(ctx)
		assert.Error(t, err, name)
	}
}

func TestIdentityFromContextUsesTokenSubject(t *testing.T) {
	token, err := issueToken(9, []byte("secret"), defaultTokenTTL)
	require.NoError(t, err)
	subject, err := parseTokenSubject(token, []byte("secret"))
	require.NoError(t, err)

	identity, err := identityFromContext(context.WithValue(context.Background(), contextSubjectKey, subject))
	require.NoError(t, err)
	assert.Equal(t, 9, identity.AccountID)
	assert.True(t, identity.Authenticated())
}
