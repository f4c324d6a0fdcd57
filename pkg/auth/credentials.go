package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"pinharvest/pkg/browser"
)

var (
	// ErrInvalidAccount indicates a nil or unnamed account
	ErrInvalidAccount = errors.New("invalid account")
	// ErrAccountNotFound indicates no stored account matched
	ErrAccountNotFound = errors.New("account not found")
)

// TokenSet is the reusable session proof: the cookie set captured after a
// successful login. It is treated as an opaque blob with no schema beyond
// round-tripping through save/load.
type TokenSet []browser.Cookie

// Credentials are the optional interactive login credentials
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Account bundles a target site account: interactive credentials plus the
// last captured token set
type Account struct {
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Password     string    `json:"password,omitempty"`
	Tokens       TokenSet  `json:"tokens,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Credentials returns the account's interactive credentials, or nil when
// none are stored
func (a *Account) Credentials() *Credentials {
	if a == nil || a.Email == "" || a.Password == "" {
		return nil
	}
	return &Credentials{Email: a.Email, Password: a.Password}
}

// Session is the authentication proof handed to the rest of the pipeline
type Session struct {
	Tokens   TokenSet
	Valid    bool
	Strategy string
}

// CredentialStore is the interface for storing and retrieving accounts
type CredentialStore interface {
	// Store saves an account
	Store(account *Account) error

	// Retrieve gets the account with the given name
	Retrieve(name string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes the account with the given name
	Delete(name string) error

	// Exists checks if an account with the given name is stored
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage
// backends: system keychain first, encrypted file as fallback, and the
// plain cookie file last so legacy session files keep working.
func NewManager(cookiesPath string) (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	encryptedStore, err := NewEncryptedFileStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	if cookiesPath != "" {
		stores = append(stores, NewFileStore(cookiesPath))
	}

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over an explicit store chain
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the account using every store that will take it, so the
// fastest store wins on the next retrieve
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidAccount
	}

	account.LastModified = time.Now()

	var lastErr error
	stored := false
	for _, store := range m.stores {
		if err := store.Store(account); err == nil {
			stored = true
		} else {
			lastErr = err
		}
	}

	if stored {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the account from the first store that has it
func (m *Manager) Retrieve(name string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(name); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
}

// List returns all stored accounts across stores, most recently modified
// version winning per name
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := accountMap[account.Name]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Name] = account
			}
		}
	}

	var result []*Account
	for _, account := range accountMap {
		result = append(result, account)
	}

	return result, nil
}

// Delete removes the account from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}

	return nil
}

// Exists checks if any store has the account
func (m *Manager) Exists(name string) bool {
	for _, store := range m.stores {
		if store.Exists(name) {
			return true
		}
	}
	return false
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	var configDir string
	switch runtime.GOOS {
	case "darwin":
		configDir = filepath.Join(home, "Library", "Application Support", "pinharvest")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			configDir = filepath.Join(appData, "pinharvest")
		} else {
			configDir = filepath.Join(home, "pinharvest")
		}
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "pinharvest")
		} else {
			configDir = filepath.Join(home, ".config", "pinharvest")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}
