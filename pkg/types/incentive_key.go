package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var incentiveKeyArgs abi.Arguments

func init() {
	keyType, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "rewardToken", Type: "address"},
		{Name: "pool", Type: "address"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "refundee", Type: "address"},
	})
	if err != nil {
		panic(fmt.Sprintf("invalid incentive key type: %v", err))
	}
	incentiveKeyArgs = abi.Arguments{{Type: keyType}}
}

// Hash computes the ledger's identifier for an incentive key, the
// keccak256 hash of its ABI encoding. This matches the incentiveId the
// ledger emits in its staking events; configured incentive ids are
// validated against it at load so the id never needs re-deriving at
// runtime.
func (k IncentiveKey) Hash() (common.Hash, error) {
	packed, err := incentiveKeyArgs.Pack(k)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode incentive key: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}
