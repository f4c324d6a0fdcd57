package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists a single account as a plain JSON blob. It is the
// credential persistence file the original cookie-file workflow uses: no
// schema beyond round-tripping through save/load, readable alongside the
// scraper for debugging.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Store writes the account blob, creating parent directories as needed
func (f *FileStore) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidAccount
	}

	dir := filepath.Dir(f.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return os.Rename(tempFile, f.path)
}

// Retrieve reads the stored blob. The file holds one account; the name is
// checked only when the blob carries one.
func (f *FileStore) Retrieve(name string) (*Account, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var account Account
	if err := json.Unmarshal(data, &account); err != nil {
		// Legacy format: a bare cookie array saved by earlier versions.
		var tokens TokenSet
		if jerr := json.Unmarshal(data, &tokens); jerr == nil {
			return &Account{Name: name, Tokens: tokens}, nil
		}
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	if account.Name != "" && name != "" && account.Name != name {
		return nil, ErrAccountNotFound
	}
	if account.Name == "" {
		account.Name = name
	}

	return &account, nil
}

// List returns the single stored account, if any
func (f *FileStore) List() ([]*Account, error) {
	account, err := f.Retrieve("")
	if err != nil {
		if err == ErrAccountNotFound {
			return []*Account{}, nil
		}
		return nil, err
	}
	return []*Account{account}, nil
}

// Delete removes the blob file
func (f *FileStore) Delete(name string) error {
	if !f.Exists(name) {
		return ErrAccountNotFound
	}
	return os.Remove(f.path)
}

// Exists checks whether a blob exists for the name
func (f *FileStore) Exists(name string) bool {
	account, err := f.Retrieve(name)
	return err == nil && account != nil
}
