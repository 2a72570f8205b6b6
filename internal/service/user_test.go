package service

import (
	"testing"

	"rentchat/internal/auth"
	"rentchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePhoneNumber(t *testing.T) {
	tests := []struct {
		phone   string
		wantErr bool
	}{
		{"+998901234567", false},
		{"998901234567", true},
		{"+79001234567", true},
		{"+99890123456", true},
		{"+99890123456a", true},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := ValidatePhoneNumber(tt.phone)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePhoneNumber(%q) error = %v, wantErr %v", tt.phone, err, tt.wantErr)
			}
		})
	}
}

func TestUserService_RegisterLoginRefresh(t *testing.T) {
	gdb := setupTestDB(t)
	s := newServices(gdb)

	reg, err := s.users.Register(ctx, "Aziz", "+998901234567", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Aziz", reg.Name)

	_, err = s.users.Register(ctx, "Other", "+998901234567", "secret")
	assert.ErrorIs(t, err, ErrPhoneTaken)

	_, err = s.users.Login(ctx, "+998901234567", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := s.users.Login(ctx, "+998901234567", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)

	refreshed, err := s.users.RefreshTokens(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the old refresh token has been rotated out
	_, err = s.users.RefreshTokens(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = s.users.RefreshTokens(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	var stored models.RefreshToken
	require.NoError(t, gdb.Where("user_id = ?", reg.ID).Last(&stored).Error)
	assert.Equal(t, auth.HashRefreshToken(refreshed.RefreshToken), stored.TokenHash)

	u, err := s.users.FindUser(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "+998901234567", u.PhoneNumber)

	_, err = s.users.FindUser(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
