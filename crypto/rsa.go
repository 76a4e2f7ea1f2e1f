package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/sirupsen/logrus"
)

// oaepOverhead is 2*hLen+2 for OAEP with SHA-256.
const oaepOverhead = 2*sha256.Size + 2

// RSAKeyPair is an RSA key pair used with OAEP-SHA256. Private may be nil
// for a peer's public key, in which case only Encrypt is available.
type RSAKeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// GenerateRSAKeyPair generates a new key pair with the given modulus size.
func GenerateRSAKeyPair(bits int) (*RSAKeyPair, error) {
	log := newOpLog("GenerateRSAKeyPair", logrus.Fields{"bits": bits})
	defer log.begin()()

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		log.failure(err, "generate").Error("RSA key generation failed")
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return &RSAKeyPair{Public: &priv.PublicKey, Private: priv}, nil
}

// PlaintextChunk returns the largest plaintext block a single OAEP
// operation can seal (446 bytes for a 4096-bit key).
func (kp *RSAKeyPair) PlaintextChunk() int {
	return kp.Public.Size() - oaepOverhead
}

// CiphertextChunk returns the size of one sealed block (512 bytes for a
// 4096-bit key).
func (kp *RSAKeyPair) CiphertextChunk() int {
	return kp.Public.Size()
}

// Encrypt splits plaintext into PlaintextChunk-sized pieces, seals each with
// OAEP-SHA256 and concatenates the CiphertextChunk-sized results. An empty
// plaintext encrypts to an empty ciphertext.
func (kp *RSAKeyPair) Encrypt(plaintext []byte) ([]byte, error) {
	if kp == nil || kp.Public == nil {
		return nil, fmt.Errorf("%w: RSA public key", ErrKeysNotLoaded)
	}

	chunk := kp.PlaintextChunk()
	nChunks := (len(plaintext) + chunk - 1) / chunk
	out := make([]byte, 0, nChunks*kp.CiphertextChunk())

	for off := 0; off < len(plaintext); off += chunk {
		end := off + chunk
		if end > len(plaintext) {
			end = len(plaintext)
		}
		sealed, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, kp.Public, plaintext[off:end], nil)
		if err != nil {
			return nil, fmt.Errorf("RSA encrypt chunk at offset %d: %w", off, err)
		}
		out = append(out, sealed...)
	}
	return out, nil
}

// Decrypt splits ciphertext into CiphertextChunk-sized blocks, opens each and
// concatenates the plaintexts. A length that is not a multiple of the chunk
// size returns ErrMalformedCiphertext.
func (kp *RSAKeyPair) Decrypt(ciphertext []byte) ([]byte, error) {
	if kp == nil || kp.Private == nil {
		return nil, fmt.Errorf("%w: RSA private key", ErrKeysNotLoaded)
	}

	chunk := kp.CiphertextChunk()
	if len(ciphertext)%chunk != 0 {
		logrus.WithFields(logrus.Fields{
			"function": "RSAKeyPair.Decrypt",
			"length":   len(ciphertext),
			"chunk":    chunk,
		}).Debug("Ciphertext length is not a multiple of the RSA block size")
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrMalformedCiphertext, len(ciphertext), chunk)
	}

	out := make([]byte, 0, len(ciphertext)/chunk*kp.PlaintextChunk())
	for off := 0; off < len(ciphertext); off += chunk {
		opened, err := rsa.DecryptOAEP(sha256.New(), nil, kp.Private, ciphertext[off:off+chunk], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: RSA block at offset %d: %v", ErrDecryptionFailed, off, err)
		}
		out = append(out, opened...)
	}
	return out, nil
}
