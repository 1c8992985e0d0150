package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestGenerateToken(t *testing.T) {
	secret := "test-secret"
	userID := "admin"
	expiresIn := 5 * time.Minute

	tokenStr, expiresAt, err := GenerateToken(userID, secret, expiresIn)
	assert.NoError(t, err)
	assert.NotEmpty(t, tokenStr)

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	assert.NoError(t, err)
	assert.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, userID, claims[claimSubject])
	assert.Equal(t, userID, claims[claimUserID])

	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	assert.Equal(t, int64(5*60), exp-iat)
	assert.Equal(t, expiresAt.Unix(), exp)
}

func TestGenerateTokenValidation(t *testing.T) {
	_, _, err := GenerateToken("", "secret", time.Minute)
	assert.Error(t, err)

	_, _, err = GenerateToken("admin", "", time.Minute)
	assert.Error(t, err)

	_, _, err = GenerateToken("admin", "secret", 0)
	assert.Error(t, err)
}

func TestUserIDFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	secret := "test-secret"
	tokenStr, _, err := GenerateToken("admin", secret, time.Minute)
	assert.NoError(t, err)

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	assert.NoError(t, err)
	c.Set("user", token)

	userID, err := UserIDFromContext(c)
	assert.NoError(t, err)
	assert.Equal(t, "admin", userID)
}

func TestUserIDFromContextMissingUser(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_, err := UserIDFromContext(c)
	assert.Error(t, err)
}
