package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ops-realtime-demo/domain/user"
	"github.com/example/ops-realtime-demo/modules/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users map[string]user.User
	err   error
}

func (f *fakeDirectory) FindUserByID(_ context.Context, id string) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeDirectory) FindUsersByDepartment(_ context.Context, department string) ([]user.User, error) {
	var out []user.User
	for _, u := range f.users {
		if u.Department == department {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestResolver_Authenticate(t *testing.T) {
	tokens := NewTokenManager(testConfig())
	dir := &fakeDirectory{users: map[string]user.User{
		"u1": {ID: "u1", Name: "Ada", Department: "Operations"},
	}}
	resolver := NewResolver(tokens, dir)

	valid, err := tokens.GenerateToken("u1")
	require.NoError(t, err)
	ghost, err := tokens.GenerateToken("ghost")
	require.NoError(t, err)

	t.Run("valid credential", func(t *testing.T) {
		id, err := resolver.Authenticate(context.Background(), valid)
		require.NoError(t, err)
		assert.Equal(t, user.Identity{ID: "u1", DisplayName: "Ada", Department: "Operations"}, id)
		assert.True(t, id.IsOperations())
	})

	tests := []struct {
		name       string
		credential string
		kind       Kind
	}{
		{"missing", "", MissingCredential},
		{"invalid", "garbage", InvalidCredential},
		{"unknown user", ghost, UnknownUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Authenticate(context.Background(), tt.credential)
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.kind, authErr.Kind)
		})
	}
}

func TestResolver_DirectoryFailureIsNotAuthError(t *testing.T) {
	tokens := NewTokenManager(testConfig())
	boom := errors.New("database is locked")
	resolver := NewResolver(tokens, &fakeDirectory{err: boom})

	token, err := tokens.GenerateToken("u1")
	require.NoError(t, err)

	_, err = resolver.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr))
}
