package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Network identifies a supported chain by its configured name.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkRinkeby Network = "rinkeby"
)

// AvailableNetworks lists the networks the client knows how to talk to.
var AvailableNetworks = []Network{NetworkMainnet, NetworkRinkeby}

// IsValid reports whether the network is one of the supported chains.
func (n Network) IsValid() bool {
	for _, v := range AvailableNetworks {
		if n == v {
			return true
		}
	}
	return false
}

// IncentiveKey is the on-chain tuple identifying a reward program.
// Field order and names must match the staking ledger ABI tuple.
type IncentiveKey struct {
	RewardToken common.Address `json:"rewardToken"`
	Pool        common.Address `json:"pool"`
	StartTime   *big.Int       `json:"startTime"`
	EndTime     *big.Int       `json:"endTime"`
	Refundee    common.Address `json:"refundee"`
}

// Incentive is a reward program over a time window. The ID is computed by
// the staking ledger from the key and is treated as opaque client-side.
type Incentive struct {
	ID     string       `json:"id"`
	Key    IncentiveKey `json:"key"`
	Reward *big.Int     `json:"reward"`
	Ended  bool         `json:"ended"`
}

// Position is one liquidity-ownership NFT as seen by the connected account.
// Owner is the beneficial owner, which differs from the current custodian
// once the token has been transferred into the staking ledger. Reward is
// only meaningful while Staked is true.
type Position struct {
	TokenID uint64         `json:"tokenId"`
	Owner   common.Address `json:"owner"`
	Staked  bool           `json:"staked"`
	Reward  *big.Int       `json:"reward"`
}

// RewardResult is the per-token outcome of a reward probe. The staking
// ledger signals "no active stake" by reverting, so an unstaked token is a
// normal result here, not an error.
type RewardResult struct {
	Staked bool     `json:"staked"`
	Amount *big.Int `json:"amount"`
}

// Unstaked is the result for a token with no active stake under the
// current incentive.
func Unstaked() RewardResult {
	return RewardResult{Staked: false, Amount: big.NewInt(0)}
}

// StakeStep is the next pending step of the stake sequence for a token,
// derived from on-chain approval and custody state.
type StakeStep string

const (
	StakeStepApprove  StakeStep = "approve"
	StakeStepTransfer StakeStep = "transfer"
	StakeStepStake    StakeStep = "stake"
)

// WithdrawStep is the next pending step of the withdraw sequence for a
// token, derived from the deposit record's stake counter.
type WithdrawStep string

const (
	WithdrawStepUnstake  WithdrawStep = "unstake"
	WithdrawStepWithdraw WithdrawStep = "withdraw"
)

// Deposit mirrors the staking ledger's deposit record for a token.
type Deposit struct {
	Owner          common.Address `json:"owner"`
	NumberOfStakes uint64         `json:"numberOfStakes"`
}
