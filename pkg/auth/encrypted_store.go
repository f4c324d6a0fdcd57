package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// EncryptedFileStore implements CredentialStore using an encrypted file
type EncryptedFileStore struct {
	filePath   string
	passphrase []byte
}

// encryptedData represents the structure of the encrypted file
type encryptedData struct {
	Salt     string              `json:"salt"`
	Accounts map[string]*Account `json:"accounts"`
}

// NewEncryptedFileStore creates a new encrypted file-based credential store
func NewEncryptedFileStore() (*EncryptedFileStore, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	filePath := filepath.Join(configDir, "accounts.enc")

	// Get passphrase from environment or generate one
	passphrase := os.Getenv("PINHARVEST_PASSPHRASE")
	if passphrase == "" {
		// Use a machine-specific passphrase stored in a protected file
		passphraseFile := filepath.Join(configDir, ".passphrase")
		if data, err := os.ReadFile(passphraseFile); err == nil {
			passphrase = string(data)
		} else {
			// Generate a new passphrase
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				return nil, fmt.Errorf("failed to generate passphrase: %w", err)
			}
			passphrase = base64.StdEncoding.EncodeToString(b)
			if err := os.WriteFile(passphraseFile, []byte(passphrase), 0600); err != nil {
				return nil, fmt.Errorf("failed to save passphrase: %w", err)
			}
		}
	}

	return &EncryptedFileStore{
		filePath:   filePath,
		passphrase: []byte(passphrase),
	}, nil
}

// Store saves the account to the encrypted file
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidAccount
	}

	accounts, err := e.loadAccounts()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load existing accounts: %w", err)
	}

	if accounts == nil {
		accounts = make(map[string]*Account)
	}

	account.LastModified = time.Now()
	accounts[account.Name] = account

	return e.saveAccounts(accounts)
}

// Retrieve gets the account from the encrypted file
func (e *EncryptedFileStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidAccount
	}

	accounts, err := e.loadAccounts()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	account, exists := accounts[name]
	if !exists {
		return nil, ErrAccountNotFound
	}

	return account, nil
}

// List returns all accounts from the encrypted file
func (e *EncryptedFileStore) List() ([]*Account, error) {
	accounts, err := e.loadAccounts()
	if err != nil {
		if os.IsNotExist(err) {
			return []*Account{}, nil
		}
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	result := make([]*Account, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, account)
	}

	return result, nil
}

// Delete removes the account from the encrypted file
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidAccount
	}

	accounts, err := e.loadAccounts()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	if _, exists := accounts[name]; !exists {
		return ErrAccountNotFound
	}

	delete(accounts, name)
	return e.saveAccounts(accounts)
}

// Exists checks if the account exists in the encrypted file
func (e *EncryptedFileStore) Exists(name string) bool {
	if name == "" {
		return false
	}

	accounts, err := e.loadAccounts()
	if err != nil {
		return false
	}

	_, exists := accounts[name]
	return exists
}

// loadAccounts loads and decrypts accounts from the file
func (e *EncryptedFileStore) loadAccounts() (map[string]*Account, error) {
	data, err := os.ReadFile(e.filePath)
	if err != nil {
		return nil, err
	}

	var encData encryptedData
	if err := json.Unmarshal(data, &encData); err != nil {
		return nil, fmt.Errorf("failed to parse encrypted file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(encData.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	key := pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)

	// The accounts were stored as an encrypted blob in a special key
	encryptedBlob, exists := encData.Accounts["_encrypted"]
	if !exists || encryptedBlob == nil {
		return make(map[string]*Account), nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedBlob.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plaintext, err := decrypt(ciphertext, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt accounts: %w", err)
	}

	var accounts map[string]*Account
	if err := json.Unmarshal(plaintext, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}

	return accounts, nil
}

// saveAccounts encrypts and saves accounts to the file
func (e *EncryptedFileStore) saveAccounts(accounts map[string]*Account) error {
	plaintext, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)

	ciphertext, err := encrypt(plaintext, key)
	if err != nil {
		return fmt.Errorf("failed to encrypt accounts: %w", err)
	}

	encData := encryptedData{
		Salt: base64.StdEncoding.EncodeToString(salt),
		Accounts: map[string]*Account{
			"_encrypted": {
				Password: base64.StdEncoding.EncodeToString(ciphertext),
			},
		},
	}

	data, err := json.MarshalIndent(encData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal encrypted data: %w", err)
	}

	tempFile := e.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, e.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save encrypted file: %w", err)
	}

	return nil
}

// encrypt encrypts data using AES-GCM
func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt decrypts data using AES-GCM
func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
