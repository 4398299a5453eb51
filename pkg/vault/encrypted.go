package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// PassphraseFunc supplies the file store passphrase on first use.
type PassphraseFunc func() (string, error)

// EnvPassphrase reads TWEETWATCH_PASSPHRASE, then falls back to next.
func EnvPassphrase(next PassphraseFunc) PassphraseFunc {
	return func() (string, error) {
		if pass := os.Getenv("TWEETWATCH_PASSPHRASE"); pass != "" {
			return pass, nil
		}
		if next == nil {
			return "", fmt.Errorf("%w: set TWEETWATCH_PASSPHRASE", ErrStoreUnavailable)
		}
		return next()
	}
}

// EncryptedFileStore keeps all entries in one AES-GCM encrypted file whose
// key is derived from a passphrase with PBKDF2.
type EncryptedFileStore struct {
	path string
	ask  PassphraseFunc

	mu         sync.Mutex
	passphrase string
}

type fileFormat struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

func NewEncryptedFileStore(path string, passphrase PassphraseFunc) *EncryptedFileStore {
	return &EncryptedFileStore{path: path, ask: passphrase}
}

func (e *EncryptedFileStore) Name() string { return "encrypted-file" }

func (e *EncryptedFileStore) Put(name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, salt, err := e.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	entries[name] = string(data)
	return e.save(entries, salt)
}

func (e *EncryptedFileStore) Get(name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, _, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	data, ok := entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(data), nil
}

func (e *EncryptedFileStore) Delete(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, salt, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if _, ok := entries[name]; !ok {
		return ErrNotFound
	}
	delete(entries, name)

	if len(entries) == 0 {
		return os.Remove(e.path)
	}
	return e.save(entries, salt)
}

func (e *EncryptedFileStore) key(salt []byte) ([]byte, error) {
	if e.passphrase == "" {
		if e.ask == nil {
			return nil, fmt.Errorf("%w: no passphrase", ErrStoreUnavailable)
		}
		pass, err := e.ask()
		if err != nil {
			return nil, err
		}
		if pass == "" {
			return nil, errors.New("empty passphrase")
		}
		e.passphrase = pass
	}
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New), nil
}

// load returns os.ErrNotExist when the file is missing.
func (e *EncryptedFileStore) load() (map[string]string, []byte, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var f fileFormat
	if err := json.Unmarshal(content, &f); err != nil {
		return nil, nil, fmt.Errorf("failed to parse vault file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(f.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(f.Encrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode vault data: %w", err)
	}

	key, err := e.key(salt)
	if err != nil {
		return nil, nil, err
	}
	plain, err := decrypt(sealed, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt vault (wrong passphrase?): %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(plain, &entries); err != nil {
		return nil, nil, fmt.Errorf("failed to parse vault entries: %w", err)
	}
	return entries, salt, nil
}

func (e *EncryptedFileStore) save(entries map[string]string, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	key, err := e.key(salt)
	if err != nil {
		return err
	}

	plain, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal vault entries: %w", err)
	}
	sealed, err := encrypt(plain, key)
	if err != nil {
		return fmt.Errorf("failed to encrypt vault: %w", err)
	}

	content, err := json.MarshalIndent(fileFormat{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write vault file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

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

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
