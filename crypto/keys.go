package crypto

import (
	"bufio"
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rfvox/limits"
)

// Key file names inside KeyConfig.Dir.
const (
	AESKeyFile        = "aes.txt"
	PublicKeyFile     = "public_key.pem"
	PrivateKeyFile    = "private_key.pem"
	HybridPublicFile  = "hybrid_public.pem"
	HybridPrivateFile = "hybrid_private.pem"
	HybridWrappedFile = "hybrid.txt"
)

// KeyConfig describes where key material lives and how it is generated.
type KeyConfig struct {
	// Dir is the key directory. It is created with mode 0700 if missing.
	Dir string
	// Bits is the RSA modulus size for generated keys. Zero means
	// limits.RSAKeyBits.
	Bits int
	// Policy is the IV policy of the AES and hybrid contexts.
	Policy IVPolicy
	// Passphrase, when set, seals private key files at rest with SealedStore.
	Passphrase []byte
}

func (c KeyConfig) bits() int {
	if c.Bits == 0 {
		return limits.RSAKeyBits
	}
	return c.Bits
}

// KeyMaterial is everything LoadOrGenerateKeys produces.
type KeyMaterial struct {
	AES    *AESContext
	RSA    *RSAKeyPair
	Hybrid *HybridContext
}

// Wipe zeroes the symmetric key material.
func (km *KeyMaterial) Wipe() {
	if km.AES != nil {
		km.AES.Wipe()
	}
	if km.Hybrid != nil {
		km.Hybrid.Wipe()
	}
}

// keyDir reads and writes key files, sealing private keys when a passphrase
// is configured.
type keyDir struct {
	dir    string
	sealed *SealedStore
}

// LoadOrGenerateKeys loads the key files in cfg.Dir, generating any group
// that is entirely absent. A file that exists but cannot be parsed is an
// error and is never overwritten.
//
// Groups are: the AES key and IV; the RSA key pair; the hybrid RSA key pair
// together with the AES key wrapped under it.
func LoadOrGenerateKeys(cfg KeyConfig) (*KeyMaterial, error) {
	log := newOpLog("LoadOrGenerateKeys", logrus.Fields{"dir": cfg.Dir})
	defer log.begin()()

	kd, err := openKeyDir(cfg)
	if err != nil {
		return nil, err
	}
	defer kd.close()

	km := &KeyMaterial{}

	if km.AES, err = kd.loadOrGenerateAES(cfg.Policy); err != nil {
		log.failure(err, "aes").Error("Failed to load AES key")
		return nil, err
	}

	if km.RSA, err = kd.loadOrGenerateRSA(PublicKeyFile, PrivateKeyFile, cfg.bits()); err != nil {
		log.failure(err, "rsa").Error("Failed to load RSA key pair")
		km.Wipe()
		return nil, err
	}

	if km.Hybrid, err = kd.loadOrGenerateHybrid(cfg); err != nil {
		log.failure(err, "hybrid").Error("Failed to load hybrid key")
		km.Wipe()
		return nil, err
	}

	log.entry.WithFields(KeyFingerprint(km.Hybrid.Wrapped, "hybrid_wrapped")).Info("Key material ready")
	return km, nil
}

// CreateHybridKeys generates a new hybrid RSA key pair and wraps a fresh AES
// key under it. Existing hybrid files are kept unless force is set.
func CreateHybridKeys(cfg KeyConfig, force bool) (*HybridContext, error) {
	log := newOpLog("CreateHybridKeys", logrus.Fields{
		"dir":   cfg.Dir,
		"force": force,
	})
	defer log.begin()()

	kd, err := openKeyDir(cfg)
	if err != nil {
		return nil, err
	}
	defer kd.close()

	if !force {
		all := true
		for _, name := range []string{HybridPublicFile, HybridPrivateFile, HybridWrappedFile} {
			ok, err := kd.exists(name)
			if err != nil {
				return nil, err
			}
			all = all && ok
		}
		if all {
			return nil, fmt.Errorf("hybrid keys already exist in %s", cfg.Dir)
		}
	}

	keys, err := GenerateRSAKeyPair(cfg.bits())
	if err != nil {
		return nil, err
	}
	if err := kd.writeRSA(HybridPublicFile, HybridPrivateFile, keys); err != nil {
		return nil, err
	}

	h, err := NewHybridContext(keys, cfg.Policy)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(kd.path(HybridWrappedFile), h.Wrapped, 0o600); err != nil {
		h.Wipe()
		return nil, err
	}

	log.entry.Info("Hybrid keys created")
	return h, nil
}

func openKeyDir(cfg KeyConfig) (*keyDir, error) {
	if cfg.Dir == "" {
		return nil, errors.New("key directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	kd := &keyDir{dir: cfg.Dir}
	if len(cfg.Passphrase) > 0 {
		pass := make([]byte, len(cfg.Passphrase))
		copy(pass, cfg.Passphrase)
		sealed, err := NewSealedStore(cfg.Dir, pass)
		if err != nil {
			return nil, err
		}
		kd.sealed = sealed
	}
	return kd, nil
}

func (kd *keyDir) close() {
	if kd.sealed != nil {
		kd.sealed.Close()
	}
}

func (kd *keyDir) path(name string) string {
	return filepath.Join(kd.dir, name)
}

func (kd *keyDir) exists(name string) (bool, error) {
	_, err := os.Stat(kd.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", name, err)
}

func (kd *keyDir) read(name string) ([]byte, error) {
	data, err := os.ReadFile(kd.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := limits.ValidateKeyFile(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptKeyFile, name, err)
	}
	return data, nil
}

func (kd *keyDir) readPrivate(name string) ([]byte, error) {
	if kd.sealed == nil {
		return kd.read(name)
	}
	data, err := kd.sealed.Read(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptKeyFile, name, err)
	}
	return data, nil
}

func (kd *keyDir) writePrivate(name string, data []byte) error {
	if kd.sealed == nil {
		return writeFileAtomic(kd.path(name), data, 0o600)
	}
	return kd.sealed.Write(name, data)
}

func (kd *keyDir) loadOrGenerateAES(policy IVPolicy) (*AESContext, error) {
	ok, err := kd.exists(AESKeyFile)
	if err != nil {
		return nil, err
	}
	if ok {
		data, err := kd.read(AESKeyFile)
		if err != nil {
			return nil, err
		}
		defer ZeroBytes(data)
		return parseAESKeyFile(data, policy)
	}

	ctx, err := GenerateAESContext(policy)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(kd.path(AESKeyFile), formatAESKeyFile(ctx), 0o600); err != nil {
		ctx.Wipe()
		return nil, err
	}
	return ctx, nil
}

func (kd *keyDir) loadOrGenerateRSA(pubName, privName string, bits int) (*RSAKeyPair, error) {
	pubOK, err := kd.exists(pubName)
	if err != nil {
		return nil, err
	}
	privOK, err := kd.exists(privName)
	if err != nil {
		return nil, err
	}

	switch {
	case !pubOK && !privOK:
		kp, err := GenerateRSAKeyPair(bits)
		if err != nil {
			return nil, err
		}
		if err := kd.writeRSA(pubName, privName, kp); err != nil {
			return nil, err
		}
		return kp, nil

	case pubOK && !privOK:
		return nil, fmt.Errorf("%w: %s exists but %s is missing", ErrCorruptKeyFile, pubName, privName)
	}

	privPEM, err := kd.readPrivate(privName)
	if err != nil {
		return nil, err
	}
	priv, err := parsePrivateKeyPEM(privPEM)
	ZeroBytes(privPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptKeyFile, privName, err)
	}
	kp := &RSAKeyPair{Public: &priv.PublicKey, Private: priv}

	if !pubOK {
		pubPEM, err := encodePublicKeyPEM(kp.Public)
		if err != nil {
			return nil, err
		}
		if err := writeFileAtomic(kd.path(pubName), pubPEM, 0o644); err != nil {
			return nil, err
		}
		return kp, nil
	}

	pubPEM, err := kd.read(pubName)
	if err != nil {
		return nil, err
	}
	pub, err := parsePublicKeyPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptKeyFile, pubName, err)
	}
	if !pub.Equal(&priv.PublicKey) {
		return nil, fmt.Errorf("%w: %s does not match %s", ErrCorruptKeyFile, pubName, privName)
	}
	return kp, nil
}

func (kd *keyDir) loadOrGenerateHybrid(cfg KeyConfig) (*HybridContext, error) {
	keys, err := kd.loadOrGenerateRSA(HybridPublicFile, HybridPrivateFile, cfg.bits())
	if err != nil {
		return nil, err
	}

	ok, err := kd.exists(HybridWrappedFile)
	if err != nil {
		return nil, err
	}
	if ok {
		wrapped, err := kd.read(HybridWrappedFile)
		if err != nil {
			return nil, err
		}
		h, err := OpenHybridContext(keys, wrapped, cfg.Policy)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptKeyFile, HybridWrappedFile, err)
		}
		return h, nil
	}

	h, err := NewHybridContext(keys, cfg.Policy)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(kd.path(HybridWrappedFile), h.Wrapped, 0o600); err != nil {
		h.Wipe()
		return nil, err
	}
	return h, nil
}

func (kd *keyDir) writeRSA(pubName, privName string, kp *RSAKeyPair) error {
	privPEM, err := encodePrivateKeyPEM(kp.Private)
	if err != nil {
		return err
	}
	defer ZeroBytes(privPEM)
	if err := kd.writePrivate(privName, privPEM); err != nil {
		return err
	}

	pubPEM, err := encodePublicKeyPEM(kp.Public)
	if err != nil {
		return err
	}
	return writeFileAtomic(kd.path(pubName), pubPEM, 0o644)
}

// parseAESKeyFile reads two hex lines: the key, then the IV.
func parseAESKeyFile(data []byte, policy IVPolicy) (*AESContext, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var lines []string
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: %s: want key and IV lines, got %d", ErrCorruptKeyFile, AESKeyFile, len(lines))
	}

	key, err := hex.DecodeString(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: key: %v", ErrCorruptKeyFile, AESKeyFile, err)
	}
	defer ZeroBytes(key)
	iv, err := hex.DecodeString(lines[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: IV: %v", ErrCorruptKeyFile, AESKeyFile, err)
	}

	ctx, err := NewAESContext(key, iv, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptKeyFile, AESKeyFile, err)
	}
	return ctx, nil
}

func formatAESKeyFile(ctx *AESContext) []byte {
	return []byte(hex.EncodeToString(ctx.key[:]) + "\n" + hex.EncodeToString(ctx.iv[:]) + "\n")
}

func encodePrivateKeyPEM(priv *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	defer ZeroBytes(der)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

func encodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// parsePrivateKeyPEM accepts PKCS#8 and, for older key files, PKCS#1.
func parsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA private key", ErrInvalidKey)
		}
		return priv, nil
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}

func parsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}

// writeFileAtomic writes through a temporary file and a rename.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
