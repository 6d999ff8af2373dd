package security

import (
	"Courier/internal/api/config"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	Init(config.JWTConfig{Secret: "unit-secret", Issuer: "unit", TTL: 1})

	token, err := GenerateToken(42, nil)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "unit", claims.Issuer)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	Init(config.JWTConfig{Secret: "unit-secret"})

	claims := &UserClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = ValidateToken(forged)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	Init(config.JWTConfig{Secret: "unit-secret"})

	claims := &UserClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-secret"))
	require.NoError(t, err)

	_, err = ValidateToken(expired)
	assert.Error(t, err)
}

func TestExtractBearer(t *testing.T) {
	tok, ok := ExtractBearer("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", tok)

	_, ok = ExtractBearer("Basic xxx")
	assert.False(t, ok)
	_, ok = ExtractBearer("")
	assert.False(t, ok)
}
