package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// envKeys maps provider ids to the environment variables consulted when
// credentials.toml has no key for them.
var envKeys = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// CredentialStore manages plain-text API credentials.
type CredentialStore struct {
	credentials map[string]string // providerID → API key
}

// NewCredentialStore creates a new credential store
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		credentials: make(map[string]string),
	}
}

// Load loads credentials from disk
func (c *CredentialStore) Load(dataDir string) error {
	creds, err := loadPlainText(dataDir)
	if err != nil {
		return err
	}
	c.credentials = creds
	return nil
}

// Save saves credentials to disk
func (c *CredentialStore) Save(dataDir string) error {
	return savePlainText(dataDir, c.credentials)
}

// Get retrieves a credential for a provider, falling back to the
// provider's environment variable.
func (c *CredentialStore) Get(providerID string) string {
	if key := c.credentials[providerID]; key != "" {
		return key
	}
	if env, ok := envKeys[providerID]; ok {
		return os.Getenv(env)
	}
	return ""
}

// Set stores a credential for a provider
func (c *CredentialStore) Set(providerID string, apiKey string) error {
	if c.credentials == nil {
		c.credentials = make(map[string]string)
	}
	c.credentials[providerID] = apiKey
	return nil
}

// Delete removes a credential for a provider
func (c *CredentialStore) Delete(providerID string) error {
	delete(c.credentials, providerID)
	return nil
}

// credentialsPath returns the path to the plain text credentials file
func credentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.toml")
}

type credentialsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

// loadPlainText loads credentials from plain text TOML file
func loadPlainText(dataDir string) (map[string]string, error) {
	path := credentialsPath(dataDir)

	// If file doesn't exist, return empty map (no error)
	if !FileExists(path) {
		return make(map[string]string), nil
	}

	var cf credentialsFile
	if _, err := toml.DecodeFile(path, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	if cf.Credentials == nil {
		cf.Credentials = make(map[string]string)
	}

	return cf.Credentials, nil
}

// savePlainText saves credentials to plain text TOML file with 0600 permissions
func savePlainText(dataDir string, creds map[string]string) error {
	path := credentialsPath(dataDir)

	cf := credentialsFile{
		Credentials: creds,
	}

	// Create file with 0600 permissions (owner read/write only)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cf); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	return nil
}
