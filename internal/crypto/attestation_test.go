package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known throwaway key, never used outside tests.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestAttestRoundTrip(t *testing.T) {
	a, err := NewAttestor(testKey)
	require.NoError(t, err)

	seed := [32]byte{1, 2, 3}
	sig, err := a.Attest("req-1", seed)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	assert.NoError(t, VerifyAttestation(a.Address(), "req-1", seed, sig))
}

func TestAttestorAcceptsHexPrefix(t *testing.T) {
	plain, err := NewAttestor(testKey)
	require.NoError(t, err)
	prefixed, err := NewAttestor("0x" + testKey)
	require.NoError(t, err)

	assert.Equal(t, plain.Address(), prefixed.Address())
}

func TestVerifyRejectsTamperedSeed(t *testing.T) {
	a, err := NewAttestor(testKey)
	require.NoError(t, err)

	seed := [32]byte{1, 2, 3}
	sig, err := a.Attest("req-1", seed)
	require.NoError(t, err)

	tampered := seed
	tampered[0] ^= 0xff
	assert.Error(t, VerifyAttestation(a.Address(), "req-1", tampered, sig))
}

func TestVerifyRejectsSwappedRequest(t *testing.T) {
	a, err := NewAttestor(testKey)
	require.NoError(t, err)

	seed := [32]byte{1, 2, 3}
	sig, err := a.Attest("req-1", seed)
	require.NoError(t, err)

	// A valid attestation for one request must not verify for another.
	assert.Error(t, VerifyAttestation(a.Address(), "req-2", seed, sig))
}

func TestVerifyRejectsWrongOperator(t *testing.T) {
	a, err := NewAttestor(testKey)
	require.NoError(t, err)

	seed := [32]byte{1, 2, 3}
	sig, err := a.Attest("req-1", seed)
	require.NoError(t, err)

	other := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	assert.Error(t, VerifyAttestation(other, "req-1", seed, sig))
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	a, err := NewAttestor(testKey)
	require.NoError(t, err)

	assert.Error(t, VerifyAttestation(a.Address(), "req-1", [32]byte{}, []byte("short")))
}

func TestNewAttestorInvalidKey(t *testing.T) {
	_, err := NewAttestor("not-hex")
	assert.Error(t, err)
}

func TestEncryptedKeyRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKey, "hunter2")
	require.NoError(t, err)

	decrypted, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, decrypted)

	_, err = DecryptKey(blob, "wrong-password")
	assert.Error(t, err)
}
