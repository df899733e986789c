package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Attestor signs randomness seeds with the operator's secp256k1 key. The
// signature binds the seed to its request id, so a stored value cannot be
// swapped between requests without detection.
type Attestor struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewAttestor creates an Attestor from a hex-encoded secp256k1 private key.
func NewAttestor(privateKeyHex string) (*Attestor, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid operator key: %w", err)
	}
	return &Attestor{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the operator address that attestations recover to.
func (a *Attestor) Address() common.Address {
	return a.address
}

// attestationDigest is the signed message: keccak256(requestID || seed).
func attestationDigest(requestID string, seed [32]byte) []byte {
	return ethcrypto.Keccak256([]byte(requestID), seed[:])
}

// Attest signs the digest of a request id and seed, returning the 65-byte
// recoverable signature.
func (a *Attestor) Attest(requestID string, seed [32]byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(attestationDigest(requestID, seed), a.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign attestation: %w", err)
	}
	return sig, nil
}

// VerifyAttestation checks that sig is the operator's signature over the
// request id and seed. It returns an error when the signature is malformed
// or recovers to a different address.
func VerifyAttestation(operator common.Address, requestID string, seed [32]byte, sig []byte) error {
	if len(sig) != 65 {
		return errors.New("crypto: attestation must be 65 bytes")
	}

	pub, err := ethcrypto.SigToPub(attestationDigest(requestID, seed), sig)
	if err != nil {
		return fmt.Errorf("crypto: recover attestation signer: %w", err)
	}
	if ethcrypto.PubkeyToAddress(*pub) != operator {
		return errors.New("crypto: attestation signed by unexpected key")
	}
	return nil
}
