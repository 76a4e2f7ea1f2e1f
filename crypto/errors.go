package crypto

import "errors"

var (
	// ErrMalformedCiphertext is returned when a ciphertext does not have the
	// shape its scheme requires (an RSA ciphertext that is not a multiple of
	// the modulus size, or a per-message AES ciphertext without its counter).
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrDecryptionFailed is returned when a well-formed ciphertext does not
	// decrypt under the loaded key.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKey is returned for key material of the wrong size or type.
	ErrInvalidKey = errors.New("invalid key material")

	// ErrCorruptKeyFile is returned when a key file exists but cannot be parsed.
	ErrCorruptKeyFile = errors.New("corrupt key file")

	// ErrUnknownMode is returned for an encryption mode outside the enum.
	ErrUnknownMode = errors.New("unknown encryption mode")

	// ErrKeysNotLoaded is returned when a mode needs key material the engine
	// was not given.
	ErrKeysNotLoaded = errors.New("key material not loaded")

	// ErrEngineClosed is returned by an Engine after Close.
	ErrEngineClosed = errors.New("crypto engine closed")
)
