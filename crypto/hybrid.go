package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// wrappedKeySize is the plaintext size of a wrapped hybrid key: key || iv.
const wrappedKeySize = AESKeySize + AESIVSize

// HybridContext pairs an RSA key pair with the AES key it wraps. The AES key
// exists only in memory; on disk it is stored as Wrapped.
type HybridContext struct {
	Keys    *RSAKeyPair
	Wrapped []byte
	aes     *AESContext
}

// NewHybridContext generates a fresh AES key and IV and wraps them under the
// public half of keys.
func NewHybridContext(keys *RSAKeyPair, policy IVPolicy) (*HybridContext, error) {
	if keys == nil || keys.Public == nil {
		return nil, fmt.Errorf("%w: hybrid public key", ErrKeysNotLoaded)
	}

	material := make([]byte, wrappedKeySize)
	defer ZeroBytes(material)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate hybrid AES key: %w", err)
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, keys.Public, material, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap hybrid AES key: %w", err)
	}

	aesCtx, err := NewAESContext(material[:AESKeySize], material[AESKeySize:], policy)
	if err != nil {
		return nil, err
	}
	return &HybridContext{Keys: keys, Wrapped: wrapped, aes: aesCtx}, nil
}

// OpenHybridContext unwraps a stored AES key with the private half of keys.
func OpenHybridContext(keys *RSAKeyPair, wrapped []byte, policy IVPolicy) (*HybridContext, error) {
	if keys == nil || keys.Private == nil {
		return nil, fmt.Errorf("%w: hybrid private key", ErrKeysNotLoaded)
	}
	if len(wrapped) != keys.CiphertextChunk() {
		return nil, fmt.Errorf("%w: wrapped key is %d bytes, want %d", ErrMalformedCiphertext, len(wrapped), keys.CiphertextChunk())
	}

	material, err := rsa.DecryptOAEP(sha256.New(), nil, keys.Private, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap hybrid AES key: %v", ErrDecryptionFailed, err)
	}
	defer ZeroBytes(material)

	if len(material) != wrappedKeySize {
		return nil, fmt.Errorf("%w: unwrapped key is %d bytes, want %d", ErrInvalidKey, len(material), wrappedKeySize)
	}

	aesCtx, err := NewAESContext(material[:AESKeySize], material[AESKeySize:], policy)
	if err != nil {
		return nil, err
	}

	stored := make([]byte, len(wrapped))
	copy(stored, wrapped)
	return &HybridContext{Keys: keys, Wrapped: stored, aes: aesCtx}, nil
}

// AES returns the unwrapped stream context.
func (h *HybridContext) AES() *AESContext {
	return h.aes
}

// Encrypt applies the AES stream transform under the unwrapped hybrid key.
func (h *HybridContext) Encrypt(plaintext []byte) ([]byte, error) {
	return h.aes.Encrypt(plaintext)
}

// Decrypt reverses Encrypt.
func (h *HybridContext) Decrypt(ciphertext []byte) ([]byte, error) {
	return h.aes.Decrypt(ciphertext)
}

// Wipe zeroes the unwrapped AES key.
func (h *HybridContext) Wipe() {
	if h.aes != nil {
		h.aes.Wipe()
	}
}
