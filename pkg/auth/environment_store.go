package auth

import (
	"os"
	"strings"
	"time"

	"igmedia/pkg/config"
)

// EnvironmentStore reads cookies from IGMEDIA_* environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables. The environment holds
// a single unnamed account, so any username is accepted.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	cookies := make(map[string]string, len(config.CookieKeys))
	for _, key := range config.CookieKeys {
		if v := os.Getenv(envName(key)); v != "" {
			cookies[key] = v
		}
	}

	if username == "" {
		username = "env"
	}
	account := AccountFromCookies(username, cookies)
	account.UserAgent = os.Getenv(config.EnvPrefix + "USER_AGENT")
	account.LastModified = time.Now()

	if err := account.Validate(); err != nil {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}

// envName maps a cookie name to its variable, e.g. sessionid to IGMEDIA_SESSION_ID
func envName(cookie string) string {
	switch cookie {
	case "sessionid":
		return config.EnvPrefix + "SESSION_ID"
	case "csrftoken":
		return config.EnvPrefix + "CSRF_TOKEN"
	}
	return config.EnvPrefix + strings.ToUpper(cookie)
}
