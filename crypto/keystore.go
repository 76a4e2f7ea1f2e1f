package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// SealedStore seals files in the key directory with AES-256-GCM under a key
// derived from a passphrase. It is used for private key PEM files.
type SealedStore struct {
	sealKey  [32]byte
	dir      string
	saltFile string
}

const (
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
	// SealVersion is the current sealed file format version.
	SealVersion = 1
	// SaltSize is the size of the PBKDF2 salt.
	SaltSize = 32
	// SaltFile holds the PBKDF2 salt inside the key directory.
	SaltFile = ".salt"
)

// ErrSealedOpen is returned when a sealed file fails authentication, which
// usually means a wrong passphrase.
var ErrSealedOpen = errors.New("sealed file authentication failed")

// NewSealedStore derives the sealing key from passphrase and the salt in dir,
// creating the salt on first use. The passphrase slice is wiped.
func NewSealedStore(dir string, passphrase []byte) (*SealedStore, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	s := &SealedStore{
		dir:      dir,
		saltFile: filepath.Join(dir, SaltFile),
	}

	salt, err := s.loadOrGenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize salt: %w", err)
	}

	derived := pbkdf2.Key(passphrase, salt, PBKDF2Iterations, 32, sha256.New)
	copy(s.sealKey[:], derived)
	ZeroBytes(derived, passphrase)

	return s, nil
}

func (s *SealedStore) loadOrGenerateSalt() ([]byte, error) {
	data, err := os.ReadFile(s.saltFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read salt file: %w", err)
		}

		salt := make([]byte, SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		if err := os.WriteFile(s.saltFile, salt, 0o600); err != nil {
			return nil, fmt.Errorf("failed to save salt: %w", err)
		}
		return salt, nil
	}

	if len(data) != SaltSize {
		return nil, fmt.Errorf("invalid salt file size: got %d, want %d", len(data), SaltSize)
	}
	return data, nil
}

func (s *SealedStore) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.sealKey[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext into the sealed file format:
// version u16 BE || nonce || ciphertext+tag.
func (s *SealedStore) Seal(plaintext []byte) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 2, 2+len(nonce)+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out, SealVersion)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (s *SealedStore) Open(data []byte) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}

	minLen := 2 + gcm.NonceSize() + gcm.Overhead()
	if len(data) < minLen {
		return nil, fmt.Errorf("sealed data too short: %d bytes (minimum %d)", len(data), minLen)
	}
	if v := binary.BigEndian.Uint16(data[:2]); v != SealVersion {
		return nil, fmt.Errorf("unsupported seal version: %d (expected %d)", v, SealVersion)
	}

	nonce := data[2 : 2+gcm.NonceSize()]
	plaintext, err := gcm.Open(nil, nonce, data[2+gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedOpen, err)
	}
	return plaintext, nil
}

// Write seals plaintext and stores it as name in the key directory.
func (s *SealedStore) Write(name string, plaintext []byte) error {
	sealed, err := s.Seal(plaintext)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, name), sealed, 0o600)
}

// Read loads and opens the sealed file name.
func (s *SealedStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return s.Open(data)
}

// Rotate re-seals the named files under a new passphrase and a new salt.
// On failure the store keeps its previous key; files already re-sealed are
// restored.
func (s *SealedStore) Rotate(newPassphrase []byte, names ...string) error {
	if len(newPassphrase) == 0 {
		return errors.New("new passphrase cannot be empty")
	}

	plain := make(map[string][]byte, len(names))
	defer func() {
		for _, p := range plain {
			ZeroBytes(p)
		}
	}()
	for _, name := range names {
		p, err := s.Read(name)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		plain[name] = p
	}

	newSalt := make([]byte, SaltSize)
	if _, err := rand.Read(newSalt); err != nil {
		return fmt.Errorf("failed to generate new salt: %w", err)
	}

	derived := pbkdf2.Key(newPassphrase, newSalt, PBKDF2Iterations, 32, sha256.New)
	oldKey := s.sealKey
	copy(s.sealKey[:], derived)
	ZeroBytes(derived)

	restore := func() {
		newKey := s.sealKey
		s.sealKey = oldKey
		for name, p := range plain {
			_ = s.Write(name, p)
		}
		ZeroBytes(newKey[:])
	}

	for name, p := range plain {
		if err := s.Write(name, p); err != nil {
			restore()
			return fmt.Errorf("failed to re-seal %s: %w", name, err)
		}
	}
	if err := writeFileAtomic(s.saltFile, newSalt, 0o600); err != nil {
		restore()
		return fmt.Errorf("failed to save new salt: %w", err)
	}

	ZeroBytes(oldKey[:], newPassphrase)
	return nil
}

// Close wipes the sealing key. The store must not be used afterwards.
func (s *SealedStore) Close() error {
	ZeroBytes(s.sealKey[:])
	return nil
}
