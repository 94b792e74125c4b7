package optiply

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/errors"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.optiply.com/v1"
	// DefaultAuthURL is the production token endpoint.
	DefaultAuthURL = "https://dashboard.optiply.com/api/auth/oauth/token"
)

// ConnectionConfig holds the destination's connection settings, extracted
// from the base config's credential map at initialization time.
type ConnectionConfig struct {
	BaseURL      string
	AuthURL      string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	AccountID    int
	CouplingID   int
}

// ParseConnectionConfig extracts and validates the connection settings.
// Every missing credential is reported in one error so operators fix the
// config in a single pass.
func ParseConnectionConfig(cfg *config.BaseConfig) (*ConnectionConfig, error) {
	creds := cfg.Security.Credentials

	cc := &ConnectionConfig{
		BaseURL:      strings.TrimRight(creds["base_url"], "/"),
		AuthURL:      creds["auth_url"],
		Username:     creds["username"],
		Password:     creds["password"],
		ClientID:     creds["client_id"],
		ClientSecret: creds["client_secret"],
	}
	if cc.BaseURL == "" {
		cc.BaseURL = DefaultBaseURL
	}
	if cc.AuthURL == "" {
		cc.AuthURL = DefaultAuthURL
	}

	var missing []string
	for _, c := range []struct {
		name  string
		value string
	}{
		{"username", cc.Username},
		{"password", cc.Password},
		{"client_id", cc.ClientID},
		{"client_secret", cc.ClientSecret},
		{"account_id", creds["account_id"]},
		{"coupling_id", creds["coupling_id"]},
	} {
		if c.value == "" {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("missing credentials: %s", strings.Join(missing, ", ")))
	}

	var err error
	if cc.AccountID, err = strconv.Atoi(creds["account_id"]); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "account_id is not an integer")
	}
	if cc.CouplingID, err = strconv.Atoi(creds["coupling_id"]); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "coupling_id is not an integer")
	}

	return cc, nil
}
