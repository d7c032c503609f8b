package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Ledger event names.
const (
	EventTokenStaked   = "TokenStaked"
	EventTokenUnstaked = "TokenUnstaked"
	EventRewardClaimed = "RewardClaimed"
)

// TokenStakedEvent is emitted when a token is staked into an incentive.
type TokenStakedEvent struct {
	TokenID     uint64
	IncentiveID common.Hash
	Liquidity   *big.Int
	BlockNumber uint64
}

// TokenUnstakedEvent is emitted when a token leaves an incentive.
type TokenUnstakedEvent struct {
	TokenID     uint64
	IncentiveID common.Hash
	BlockNumber uint64
}

// RewardClaimedEvent is emitted when claimable rewards are paid out.
type RewardClaimedEvent struct {
	To          common.Address
	Reward      *big.Int
	BlockNumber uint64
}

// EventID returns the topic hash for a ledger event name.
func (l *StakingLedger) EventID(name string) common.Hash {
	return l.contractABI.Events[name].ID
}

// ParseTokenStaked decodes a TokenStaked log.
func (l *StakingLedger) ParseTokenStaked(log ethtypes.Log) (*TokenStakedEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("malformed TokenStaked log: %d topics", len(log.Topics))
	}
	unpacked, err := l.contractABI.Unpack(EventTokenStaked, log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack TokenStaked: %w", err)
	}
	return &TokenStakedEvent{
		TokenID:     new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64(),
		IncentiveID: log.Topics[2],
		Liquidity:   unpacked[0].(*big.Int),
		BlockNumber: log.BlockNumber,
	}, nil
}

// ParseTokenUnstaked decodes a TokenUnstaked log.
func (l *StakingLedger) ParseTokenUnstaked(log ethtypes.Log) (*TokenUnstakedEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("malformed TokenUnstaked log: %d topics", len(log.Topics))
	}
	return &TokenUnstakedEvent{
		TokenID:     new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64(),
		IncentiveID: log.Topics[2],
		BlockNumber: log.BlockNumber,
	}, nil
}

// ParseRewardClaimed decodes a RewardClaimed log.
func (l *StakingLedger) ParseRewardClaimed(log ethtypes.Log) (*RewardClaimedEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("malformed RewardClaimed log: %d topics", len(log.Topics))
	}
	unpacked, err := l.contractABI.Unpack(EventRewardClaimed, log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack RewardClaimed: %w", err)
	}
	return &RewardClaimedEvent{
		To:          common.BytesToAddress(log.Topics[1].Bytes()),
		Reward:      unpacked[0].(*big.Int),
		BlockNumber: log.BlockNumber,
	}, nil
}
