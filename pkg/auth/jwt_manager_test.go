package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	token, err := mgr.Generate("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestVerifyWrongSecret(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := mgr.Generate("alice")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestVerifyExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", -time.Minute)

	token, err := mgr.Generate("alice")
	require.NoError(t, err)

	_, err = mgr.Verify(token)
	assert.Error(t, err)
}

func TestExpiry(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	token, err := mgr.Generate("alice")
	require.NoError(t, err)

	exp, err := mgr.Expiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
}

func TestExtractTokenFromHeader(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/api/user/logout", nil)
	require.NoError(t, err)

	_, err = ExtractTokenFromHeader(req)
	assert.Error(t, err, "missing header must be rejected")

	req.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromHeader(req)
	assert.Error(t, err, "non-bearer scheme must be rejected")

	req.Header.Set("Authorization", "Bearer my-token")
	token, err := ExtractTokenFromHeader(req)
	require.NoError(t, err)
	assert.Equal(t, "my-token", token)
}
