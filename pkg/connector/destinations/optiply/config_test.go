package optiply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/errors"
)

func fullCredentials() map[string]string {
	return map[string]string{
		"username":      "user@example.com",
		"password":      "pass",
		"client_id":     "client",
		"client_secret": "secret",
		"account_id":    "11",
		"coupling_id":   "42",
	}
}

func TestParseConnectionConfigDefaults(t *testing.T) {
	cfg := config.NewBaseConfig("optiply", "destination")
	cfg.Security.Credentials = fullCredentials()

	conn, err := ParseConnectionConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, conn.BaseURL)
	assert.Equal(t, DefaultAuthURL, conn.AuthURL)
	assert.Equal(t, 11, conn.AccountID)
	assert.Equal(t, 42, conn.CouplingID)
}

func TestParseConnectionConfigTrimsBaseURL(t *testing.T) {
	cfg := config.NewBaseConfig("optiply", "destination")
	cfg.Security.Credentials = fullCredentials()
	cfg.Security.Credentials["base_url"] = "https://sandbox.optiply.test/v1/"

	conn, err := ParseConnectionConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.optiply.test/v1", conn.BaseURL)
}

func TestParseConnectionConfigReportsAllMissing(t *testing.T) {
	cfg := config.NewBaseConfig("optiply", "destination")
	cfg.Security.Credentials = map[string]string{"username": "user@example.com"}

	_, err := ParseConnectionConfig(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "password")
	assert.Contains(t, err.Error(), "client_id")
	assert.Contains(t, err.Error(), "account_id")
	assert.NotContains(t, err.Error(), "username")
}

func TestParseConnectionConfigRejectsNonIntegerIDs(t *testing.T) {
	cfg := config.NewBaseConfig("optiply", "destination")
	cfg.Security.Credentials = fullCredentials()
	cfg.Security.Credentials["account_id"] = "abc"

	_, err := ParseConnectionConfig(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
