package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadSecretFrom reads and trims <dir>/<secretName>. An empty file is an error.
func ReadSecretFrom(dir, secretName string) (string, error) {
	filePath := filepath.Join(dir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// SecretOrEnv returns value when set, otherwise the secret <dir>/<secretName>.
func SecretOrEnv(value, dir, secretName string) (string, error) {
	if value != "" {
		return value, nil
	}
	return ReadSecretFrom(dir, secretName)
}
