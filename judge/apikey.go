package judge

import (
	"fmt"
	"os"
	"strings"
)

// APIKeyProvider resolves the credential stored under name.
type APIKeyProvider func(name string) (string, error)

// EnvAPIKey reads keys from the process environment. config.Load has
// already merged any .env file into it.
func EnvAPIKey(name string) (string, error) {
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingAPIKey, name)
	}
	return key, nil
}

// StaticAPIKey always returns key.
func StaticAPIKey(key string) APIKeyProvider {
	return func(string) (string, error) {
		return key, nil
	}
}
