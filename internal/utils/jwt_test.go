package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet_shop/internal/models"
)

func TestGenerateAndParseJWT(t *testing.T) {
	user := models.User{ID: uuid.New(), Username: "bob", IsStaff: true}

	token, err := GenerateJWT(user, "secret")
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "bob", claims.Username)
	assert.True(t, claims.IsStaff)
	assert.NotEmpty(t, claims.ID)

	_, err = ParseJWT(token, "autre")
	assert.Error(t, err)
}

func TestGenerateJWTRequiresSecret(t *testing.T) {
	_, err := GenerateJWT(models.User{ID: uuid.New()}, "")
	assert.Error(t, err)
}

func TestParseJWTRejectsExpiredAndNoneAlg(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(signed, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: uuid.NewString()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseJWT(unsigned, "secret")
	assert.Error(t, err)
}
