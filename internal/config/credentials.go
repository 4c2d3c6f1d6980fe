package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ServiceAccount holds the Google service account key used with domain-wide
// delegation to act as hosts and the sending mailbox
type ServiceAccount struct {
	Type         string `json:"type" validate:"required,eq=service_account"`
	ProjectID    string `json:"project_id" validate:"required"`
	PrivateKeyID string `json:"private_key_id" validate:"required"`
	PrivateKey   string `json:"private_key" validate:"required"`
	ClientEmail  string `json:"client_email" validate:"required,email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri" validate:"required,url"`

	raw []byte
}

// JSON returns the key file exactly as it was read
func (s *ServiceAccount) JSON() []byte {
	return s.raw
}

// LoadServiceAccountWithEnv loads the service account key for an environment.
// For example, env="test" will look for "serviceAccount.test.json".
func LoadServiceAccountWithEnv(env string) (*ServiceAccount, error) {
	path, err := findServiceAccountFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find service account file: %w", err)
	}

	return LoadServiceAccountFromPath(path)
}

// LoadServiceAccountFromPath loads and validates a service account key file
func LoadServiceAccountFromPath(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}

	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("failed to parse service account file: %w", err)
	}

	if err := validate.Struct(&sa); err != nil {
		return nil, fmt.Errorf("service account validation failed: %w", err)
	}

	sa.raw = data
	return &sa, nil
}

func findServiceAccountFile(env string) (string, error) {
	fileName := "serviceAccount.json"
	if env != "" {
		fileName = "serviceAccount." + env + ".json"
	}

	if _, err := os.Stat(fileName); err == nil {
		return fileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, fileName)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", fileName)
}
