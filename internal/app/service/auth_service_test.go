package service

import (
	"context"
	"testing"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	appredis "github.com/Baby-jesuset/FBGENERALHW-sj/pkg/redis"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/util"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func setupAuthServiceTest(t *testing.T) (AuthService, *appredis.TokenBlacklist) {
	testDB := setupTestDB(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	blacklist := appredis.NewTokenBlacklist(client)

	svc := NewAuthService(
		repository.NewUserRepository(testDB),
		blacklist,
		testSecret,
		15*time.Minute,
		7*24*time.Hour,
	)
	return svc, blacklist
}

func TestAuthService_Register(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)

	tests := []struct {
		name    string
		input   RegisterInput
		wantErr error
	}{
		{
			name:  "valid registration",
			input: RegisterInput{Email: "Buyer@Example.com", Password: "password123", FullName: "Buyer"},
		},
		{
			name:    "duplicate email",
			input:   RegisterInput{Email: "buyer@example.com", Password: "password456", FullName: "Other"},
			wantErr: ErrEmailAlreadyExists,
		},
		{
			name:    "weak password",
			input:   RegisterInput{Email: "weak@example.com", Password: "short", FullName: "Weak"},
			wantErr: util.ErrWeakPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, tokens, err := svc.Register(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "buyer@example.com", user.Email)
			assert.NotEqual(t, tt.input.Password, user.PasswordHash)
			assert.NotEmpty(t, tokens.AccessToken)
			assert.NotEmpty(t, tokens.RefreshToken)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	_, _, err := svc.Register(RegisterInput{Email: "login@example.com", Password: "password123", FullName: "L"})
	require.NoError(t, err)

	user, tokens, err := svc.Login("login@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", user.Email)

	claims, err := util.ValidateToken(tokens.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, util.TokenTypeAccess, claims.TokenType)

	_, _, err = svc.Login("login@example.com", "wrong-password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login("nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Refresh(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	registered, tokens, err := svc.Register(RegisterInput{Email: "r@example.com", Password: "password123", FullName: "R"})
	require.NoError(t, err)

	user, fresh, err := svc.Refresh(tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, fresh.AccessToken)

	_, _, err = svc.Refresh(tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	_, _, err = svc.Refresh("garbage")
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	user, _, err := svc.Register(RegisterInput{Email: "p@example.com", Password: "password123", FullName: "Before"})
	require.NoError(t, err)

	name := "  After "
	city := "Mbarara"
	updated, err := svc.UpdateProfile(user.ID, UpdateProfileInput{FullName: &name, City: &city})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.FullName)
	assert.Equal(t, "Mbarara", updated.City)

	reloaded, err := svc.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mbarara", reloaded.City)

	_, err = svc.UpdateProfile(9999, UpdateProfileInput{City: &city})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	svc, blacklist := setupAuthServiceTest(t)
	_, tokens, err := svc.Register(RegisterInput{Email: "out@example.com", Password: "password123", FullName: "O"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Logout(ctx, tokens.AccessToken))

	revoked, err := blacklist.IsRevoked(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.NoError(t, svc.Logout(ctx, "not-a-token"))
}

func TestAuthService_LogoutWithoutRevoker(t *testing.T) {
	testDB := setupTestDB(t)
	svc := NewAuthService(repository.NewUserRepository(testDB), nil, testSecret, time.Minute, time.Hour)
	assert.NoError(t, svc.Logout(context.Background(), "anything"))
}
