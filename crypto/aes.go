package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/crypto/hkdf"
)

const (
	// AESKeySize is the AES-256 key length in bytes.
	AESKeySize = 32
	// AESIVSize is the CFB initialization vector length in bytes.
	AESIVSize = aes.BlockSize
	// CounterSize is the length of the message counter that prefixes every
	// ciphertext under IVPerMessage.
	CounterSize = 8
)

// ivInfo labels the HKDF expansion that turns a message counter into an IV.
var ivInfo = []byte("rfvox cfb iv v2")

// IVPolicy controls how the CFB initialization vector is chosen per message.
type IVPolicy int

const (
	// IVPerMessage derives a fresh IV for every message from a 64-bit counter
	// and prefixes the counter to the ciphertext. This is protocol v2.
	IVPerMessage IVPolicy = iota
	// IVFixed restarts the keystream from the stored IV on every message.
	// Two messages encrypted this way XOR to the XOR of their plaintexts;
	// it exists only to talk to protocol v1 peers.
	IVFixed
)

func (p IVPolicy) String() string {
	switch p {
	case IVPerMessage:
		return "per-message"
	case IVFixed:
		return "fixed"
	default:
		return fmt.Sprintf("IVPolicy(%d)", int(p))
	}
}

// AESContext holds an AES-256 key and IV loaded once at startup. The key
// material is immutable after construction; every Encrypt and Decrypt call
// builds its own CFB stream, so an AESContext is safe for concurrent use.
type AESContext struct {
	key     [AESKeySize]byte
	iv      [AESIVSize]byte
	policy  IVPolicy
	counter atomic.Uint64
}

// NewAESContext copies key and iv into a new context. The per-message counter
// starts at a random value so two sessions sharing a key do not collide.
func NewAESContext(key, iv []byte, policy IVPolicy) (*AESContext, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: AES key is %d bytes, want %d", ErrInvalidKey, len(key), AESKeySize)
	}
	if len(iv) != AESIVSize {
		return nil, fmt.Errorf("%w: AES IV is %d bytes, want %d", ErrInvalidKey, len(iv), AESIVSize)
	}

	c := &AESContext{policy: policy}
	copy(c.key[:], key)
	copy(c.iv[:], iv)

	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to seed message counter: %w", err)
	}
	c.counter.Store(binary.BigEndian.Uint64(seed[:]))

	return c, nil
}

// GenerateAESContext creates a context with a random key and IV.
func GenerateAESContext(policy IVPolicy) (*AESContext, error) {
	buf := make([]byte, AESKeySize+AESIVSize)
	defer ZeroBytes(buf)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate AES key material: %w", err)
	}
	return NewAESContext(buf[:AESKeySize], buf[AESKeySize:], policy)
}

// Key returns a copy of the AES key.
func (c *AESContext) Key() []byte {
	out := make([]byte, AESKeySize)
	copy(out, c.key[:])
	return out
}

// IV returns a copy of the stored IV.
func (c *AESContext) IV() []byte {
	out := make([]byte, AESIVSize)
	copy(out, c.iv[:])
	return out
}

// Policy returns the IV policy of the context.
func (c *AESContext) Policy() IVPolicy {
	return c.policy
}

// Overhead returns the number of bytes Encrypt adds to a plaintext.
func (c *AESContext) Overhead() int {
	if c.policy == IVPerMessage {
		return CounterSize
	}
	return 0
}

// Encrypt applies the CFB stream transform. The output length equals the
// input length plus Overhead; there is no padding.
func (c *AESContext) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if c.policy == IVFixed {
		out := make([]byte, len(plaintext))
		cipher.NewCFBEncrypter(block, c.iv[:]).XORKeyStream(out, plaintext)
		return out, nil
	}

	n := c.counter.Add(1)
	iv, err := c.deriveIV(n)
	if err != nil {
		return nil, err
	}

	out := make([]byte, CounterSize+len(plaintext))
	binary.BigEndian.PutUint64(out[:CounterSize], n)
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out[CounterSize:], plaintext)
	return out, nil
}

// Decrypt reverses Encrypt. Under IVPerMessage a ciphertext shorter than the
// counter prefix is malformed.
func (c *AESContext) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if c.policy == IVFixed {
		out := make([]byte, len(ciphertext))
		cipher.NewCFBDecrypter(block, c.iv[:]).XORKeyStream(out, ciphertext)
		return out, nil
	}

	if len(ciphertext) < CounterSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the message counter", ErrMalformedCiphertext, len(ciphertext))
	}

	iv, err := c.deriveIV(binary.BigEndian.Uint64(ciphertext[:CounterSize]))
	if err != nil {
		return nil, err
	}

	body := ciphertext[CounterSize:]
	out := make([]byte, len(body))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, body)
	return out, nil
}

// deriveIV expands the stored key and IV with the message counter into a
// per-message IV.
func (c *AESContext) deriveIV(n uint64) ([]byte, error) {
	info := make([]byte, len(ivInfo)+CounterSize)
	copy(info, ivInfo)
	binary.BigEndian.PutUint64(info[len(ivInfo):], n)

	iv := make([]byte, AESIVSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.key[:], c.iv[:], info), iv); err != nil {
		return nil, fmt.Errorf("failed to derive IV: %w", err)
	}
	return iv, nil
}

// Wipe zeroes the key material. The context must not be used afterwards.
func (c *AESContext) Wipe() {
	ZeroBytes(c.key[:], c.iv[:])
}
