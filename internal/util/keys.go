package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// keyFileName is the file under the data dir holding the API key.
const keyFileName = "api_key"

// SaveAPIKey stores the API key in the data directory with owner-only
// permissions.
func SaveAPIKey(dataDir, key string) error {
	if err := EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	path := filepath.Join(dataDir, keyFileName)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(key)), 0600); err != nil {
		return fmt.Errorf("failed to write API key: %w", err)
	}
	return nil
}

// LoadAPIKey reads the stored API key. Returns a helpful error when the
// key has not been initialized yet.
func LoadAPIKey(dataDir string) (string, error) {
	path := filepath.Join(dataDir, keyFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("no API key found, run \"netlens init <api key>\" first")
	}
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("stored API key is empty, run \"netlens init <api key>\" again")
	}
	return key, nil
}
