package security_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linemk/jersey-shop/internal/domain/models"
	security "github.com/linemk/jersey-shop/internal/jwt-new"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken_SignsWithGivenSecret(t *testing.T) {
	// переменная окружения не должна влиять на подпись
	t.Setenv("JWT_SECRET", "env-secret")

	tokenStr, err := security.NewToken(context.Background(), &models.User{ID: 9, Email: "a@example.com"}, "config-secret", time.Hour)
	require.NoError(t, err)

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte("config-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "9", claims["sub"])
	assert.Equal(t, false, claims["admin"])

	_, err = jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte("env-secret"), nil
	})
	assert.Error(t, err)
}

func TestNewToken_EmptySecret(t *testing.T) {
	_, err := security.NewToken(context.Background(), &models.User{ID: 1}, "", time.Hour)
	assert.ErrorIs(t, err, security.ErrEmptySecret)
}
