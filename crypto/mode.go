package crypto

import (
	"fmt"
	"strings"
)

// Mode selects the encryption scheme applied to every frame.
type Mode int

const (
	// ModeNone passes frames through unchanged.
	ModeNone Mode = iota
	// ModeAES applies the AES-256-CFB stream transform.
	ModeAES
	// ModeRSA applies chunked RSA-OAEP. Supported on the radio path but
	// expands a 58-byte frame to 512 bytes.
	ModeRSA
	// ModeHybrid applies AES-256-CFB keyed by the RSA-wrapped hybrid key.
	ModeHybrid
)

var modeNames = map[Mode]string{
	ModeNone:   "none",
	ModeAES:    "aes",
	ModeRSA:    "rsa",
	ModeHybrid: "hybrid",
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode parses a mode name. Matching is case-insensitive and the empty
// string means ModeNone.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return ModeNone, nil
	}
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
