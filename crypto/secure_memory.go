package crypto

import (
	"errors"
	"runtime"
)

// errWipeNil is returned by SecureWipe for a nil slice, which usually means
// the key was never loaded.
var errWipeNil = errors.New("no key material to wipe")

// SecureWipe zeroes a buffer holding key material.
func SecureWipe(data []byte) error {
	if data == nil {
		return errWipeNil
	}
	clear(data)
	// The buffer may be dead after this call; keep the store observable.
	runtime.KeepAlive(data)
	return nil
}

// ZeroBytes wipes every buffer given, skipping nil ones.
func ZeroBytes(bufs ...[]byte) {
	for _, b := range bufs {
		if b != nil {
			_ = SecureWipe(b)
		}
	}
}
