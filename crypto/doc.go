// Package crypto implements the frame encryption schemes of rfvox and the
// lifecycle of their key material.
//
// # Schemes
//
// Exactly one [Mode] is active at a time:
//
//   - [ModeNone]: frames pass through unchanged.
//   - [ModeAES]: AES-256 in CFB mode, see [AESContext].
//   - [ModeRSA]: chunked RSA-OAEP-SHA256, see [RSAKeyPair]. Plaintext is
//     split into 446-byte chunks (4096-bit key) and each chunk seals to a
//     512-byte block.
//   - [ModeHybrid]: AES-256-CFB keyed by an AES key that is stored on disk
//     only in RSA-wrapped form, see [HybridContext].
//
// [Engine] dispatches Encrypt and Decrypt through the active mode:
//
//	keys, err := crypto.LoadOrGenerateKeys(crypto.KeyConfig{Dir: "keys"})
//	if err != nil {
//	    logrus.Fatal(err)
//	}
//	engine, _ := crypto.NewEngine(keys, crypto.ModeAES)
//	defer engine.Close()
//
//	sealed, _ := engine.Encrypt(frame)
//	plain, err := engine.Decrypt(sealed)
//
// # IV Policies
//
// [IVFixed] restarts the CFB keystream from the stored IV for every message.
// It matches protocol v1 peers and reuses the keystream across messages.
// [IVPerMessage] (the default) derives each IV with HKDF-SHA256 from a 64-bit
// message counter and prefixes the counter to the ciphertext, adding 8 bytes
// per message.
//
// # Key Files
//
// [LoadOrGenerateKeys] manages these files in the key directory:
//
//	aes.txt             hex key line, hex IV line
//	public_key.pem      PKIX "PUBLIC KEY"
//	private_key.pem     PKCS#8 "PRIVATE KEY"
//	hybrid_public.pem   PKIX "PUBLIC KEY"
//	hybrid_private.pem  PKCS#8 "PRIVATE KEY"
//	hybrid.txt          key || iv wrapped with OAEP-SHA256 (binary)
//
// Missing groups are generated. A file that exists but does not parse is
// reported with [ErrCorruptKeyFile] and left untouched. When a passphrase is
// configured, private key files are sealed with [SealedStore] (AES-256-GCM,
// PBKDF2-SHA256).
//
// # Secure Memory
//
// [SecureWipe] and [ZeroBytes] clear key material once it is no longer
// needed; [Engine.Close] wipes the AES and hybrid keys.
package crypto
