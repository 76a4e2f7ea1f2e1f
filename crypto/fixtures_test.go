package crypto

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// testBits keeps key generation fast; the 4096-bit chunk sizes are covered
// by TestRSAProtocolChunkSizes.
const testBits = 2048

var (
	sharedRSAOnce sync.Once
	sharedRSA     *RSAKeyPair
	sharedHybrid  *RSAKeyPair
	sharedErr     error
)

func sharedKeyPairs(t *testing.T) (*RSAKeyPair, *RSAKeyPair) {
	t.Helper()
	sharedRSAOnce.Do(func() {
		sharedRSA, sharedErr = GenerateRSAKeyPair(testBits)
		if sharedErr != nil {
			return
		}
		sharedHybrid, sharedErr = GenerateRSAKeyPair(testBits)
	})
	require.NoError(t, sharedErr)
	return sharedRSA, sharedHybrid
}

// testKeyMaterial returns fresh symmetric keys over the shared RSA pairs, so
// tests may wipe it.
func testKeyMaterial(t *testing.T, policy IVPolicy) *KeyMaterial {
	t.Helper()
	rsaKeys, hybridKeys := sharedKeyPairs(t)

	aesCtx, err := GenerateAESContext(policy)
	require.NoError(t, err)
	hybrid, err := NewHybridContext(hybridKeys, policy)
	require.NoError(t, err)

	return &KeyMaterial{AES: aesCtx, RSA: rsaKeys, Hybrid: hybrid}
}
