package crypto

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Engine applies the active encryption mode to frames. The mode may be
// switched at any time; each call sees one consistent mode.
type Engine struct {
	mu     sync.RWMutex
	mode   Mode
	keys   *KeyMaterial
	closed bool
}

// NewEngine creates an engine over loaded key material. keys may be nil when
// mode is ModeNone.
func NewEngine(keys *KeyMaterial, mode Mode) (*Engine, error) {
	e := &Engine{keys: keys}
	if err := e.SetMode(mode); err != nil {
		return nil, err
	}
	return e, nil
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetMode switches the active mode. It fails if the mode is unknown or the
// engine lacks the key material the mode needs.
func (e *Engine) SetMode(mode Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if err := e.checkKeys(mode); err != nil {
		return err
	}

	if e.mode != mode {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.SetMode",
			"from":     e.mode.String(),
			"to":       mode.String(),
		}).Info("Encryption mode changed")
	}
	e.mode = mode
	return nil
}

func (e *Engine) checkKeys(mode Mode) error {
	switch mode {
	case ModeNone:
		return nil
	case ModeAES:
		if e.keys == nil || e.keys.AES == nil {
			return fmt.Errorf("%w: AES key for mode %s", ErrKeysNotLoaded, mode)
		}
	case ModeRSA:
		if e.keys == nil || e.keys.RSA == nil {
			return fmt.Errorf("%w: RSA key pair for mode %s", ErrKeysNotLoaded, mode)
		}
	case ModeHybrid:
		if e.keys == nil || e.keys.Hybrid == nil {
			return fmt.Errorf("%w: hybrid key for mode %s", ErrKeysNotLoaded, mode)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
	return nil
}

// Encrypt transforms a plaintext frame under the active mode.
func (e *Engine) Encrypt(plaintext []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	var (
		out []byte
		err error
	)
	switch e.mode {
	case ModeNone:
		out = plaintext
	case ModeAES:
		out, err = e.keys.AES.Encrypt(plaintext)
	case ModeRSA:
		out, err = e.keys.RSA.Encrypt(plaintext)
	case ModeHybrid:
		out, err = e.keys.Hybrid.Encrypt(plaintext)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownMode, int(e.mode))
	}

	if err != nil {
		newOpLog("Engine.Encrypt", logrus.Fields{
			"mode": e.mode.String(),
			"size": len(plaintext),
		}).failure(err, "encrypt").Error("Encryption failed")
		return nil, err
	}
	return out, nil
}

// Decrypt reverses Encrypt under the active mode. Failures are logged and
// returned; callers drop the frame.
func (e *Engine) Decrypt(ciphertext []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	var (
		out []byte
		err error
	)
	switch e.mode {
	case ModeNone:
		out = ciphertext
	case ModeAES:
		out, err = e.keys.AES.Decrypt(ciphertext)
	case ModeRSA:
		out, err = e.keys.RSA.Decrypt(ciphertext)
	case ModeHybrid:
		out, err = e.keys.Hybrid.Decrypt(ciphertext)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownMode, int(e.mode))
	}

	if err != nil {
		newOpLog("Engine.Decrypt", logrus.Fields{
			"mode": e.mode.String(),
			"size": len(ciphertext),
		}).failure(err, "decrypt").Warn("Decryption failed, dropping frame")
		return nil, err
	}
	return out, nil
}

// Close wipes the symmetric key material. Later calls return ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.keys != nil {
		e.keys.Wipe()
	}
	return nil
}
