package engine

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Outcome derives the game result from a verified random value. The keccak
// digest mixes the random value, the participant's address, and the game id,
// so two participants resolving against the same random value in the same
// window get independent outcomes, and the derivation stays a pure,
// auditable function of its inputs.
//
// outcome = (keccak256(randomValue || participant || gameID) mod 2) + 1
func Outcome(randomValue [32]byte, participant common.Address, gameID string) domain.Choice {
	digest := ethcrypto.Keccak256(randomValue[:], participant.Bytes(), []byte(gameID))

	// mod 2 of the big-endian digest is the parity of its last byte.
	return domain.Choice(digest[len(digest)-1]%2) + domain.ChoiceHeads
}
