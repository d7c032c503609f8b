package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/stakemate/stakemate/internal/chain"
	"github.com/stakemate/stakemate/pkg/types"
)

// IncentiveState is the ledger's per-incentive accounting record.
type IncentiveState struct {
	TotalRewardUnclaimed *big.Int
	NumberOfStakes       uint64
}

// StakingLedger provides an interface to the staking ledger contract. The
// ledger takes custody of deposited position tokens, tracks which
// incentives each token is staked in and accrues claimable rewards per
// account.
type StakingLedger struct {
	client       *chain.Client
	signer       SignerFunc
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockMu         sync.RWMutex
	mockDeposits   map[uint64]*types.Deposit
	mockStakes     map[uint64]map[common.Hash]*big.Int // tokenID -> incentiveID -> accrued reward
	mockClaimable  map[common.Address]map[common.Address]*big.Int
	mockRewardsErr error
}

// NewStakingLedger creates a ledger client bound to a connected chain
// client.
func NewStakingLedger(client *chain.Client, signer SignerFunc, contractAddr common.Address) (*StakingLedger, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is required (use NewMockStakingLedger for testing)")
	}
	if !client.IsConnected() {
		return nil, fmt.Errorf("chain client not connected to RPC")
	}

	parsedABI, err := abi.JSON(strings.NewReader(StakingLedgerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger ABI: %w", err)
	}

	backend := client.Client()
	return &StakingLedger{
		client:        client,
		signer:        signer,
		contract:      bind.NewBoundContract(contractAddr, parsedABI, backend, backend, backend),
		contractABI:   parsedABI,
		contractAddr:  contractAddr,
		mockDeposits:  make(map[uint64]*types.Deposit),
		mockStakes:    make(map[uint64]map[common.Hash]*big.Int),
		mockClaimable: make(map[common.Address]map[common.Address]*big.Int),
	}, nil
}

// NewMockStakingLedger creates a ledger with in-memory state for testing.
func NewMockStakingLedger() *StakingLedger {
	l := &StakingLedger{
		mockMode:      true,
		mockDeposits:  make(map[uint64]*types.Deposit),
		mockStakes:    make(map[uint64]map[common.Hash]*big.Int),
		mockClaimable: make(map[common.Address]map[common.Address]*big.Int),
	}
	parsedABI, err := abi.JSON(strings.NewReader(StakingLedgerABI))
	if err != nil {
		panic(fmt.Sprintf("invalid ledger ABI: %v", err))
	}
	l.contractABI = parsedABI
	return l
}

// IsMockMode returns whether running in mock mode.
func (l *StakingLedger) IsMockMode() bool {
	return l.mockMode
}

// Address returns the ledger contract address.
func (l *StakingLedger) Address() common.Address {
	return l.contractAddr
}

// ABI returns the parsed contract ABI, used for event decoding.
func (l *StakingLedger) ABI() abi.ABI {
	return l.contractABI
}

// SetMockAddress sets the contract address reported in mock mode, so
// custodian checks against the ledger address work in tests.
func (l *StakingLedger) SetMockAddress(addr common.Address) {
	l.contractAddr = addr
}

// SetMockDeposit seeds a deposit record in mock mode.
func (l *StakingLedger) SetMockDeposit(tokenID uint64, owner common.Address, numberOfStakes uint64) {
	l.mockMu.Lock()
	defer l.mockMu.Unlock()
	l.mockDeposits[tokenID] = &types.Deposit{Owner: owner, NumberOfStakes: numberOfStakes}
}

// SetMockStake seeds an active stake with an accrued reward in mock mode.
func (l *StakingLedger) SetMockStake(key types.IncentiveKey, tokenID uint64, reward *big.Int) error {
	id, err := key.Hash()
	if err != nil {
		return err
	}
	l.mockMu.Lock()
	defer l.mockMu.Unlock()
	if l.mockStakes[tokenID] == nil {
		l.mockStakes[tokenID] = make(map[common.Hash]*big.Int)
	}
	l.mockStakes[tokenID][id] = new(big.Int).Set(reward)
	return nil
}

// SetMockClaimable seeds a claimable reward balance in mock mode.
func (l *StakingLedger) SetMockClaimable(rewardToken, owner common.Address, amount *big.Int) {
	l.mockMu.Lock()
	defer l.mockMu.Unlock()
	if l.mockClaimable[rewardToken] == nil {
		l.mockClaimable[rewardToken] = make(map[common.Address]*big.Int)
	}
	l.mockClaimable[rewardToken][owner] = new(big.Int).Set(amount)
}

// SetMockRewardsError forces Rewards to fail in mock mode, for
// exercising degraded refresh paths.
func (l *StakingLedger) SetMockRewardsError(err error) {
	l.mockMu.Lock()
	defer l.mockMu.Unlock()
	l.mockRewardsErr = err
}

// Deposits returns the deposit record for a token. A token never
// deposited yields a zero record, matching the contract's mapping
// semantics.
func (l *StakingLedger) Deposits(ctx context.Context, tokenID uint64) (*types.Deposit, error) {
	if l.mockMode {
		l.mockMu.RLock()
		defer l.mockMu.RUnlock()
		if d, ok := l.mockDeposits[tokenID]; ok {
			cp := *d
			return &cp, nil
		}
		return &types.Deposit{}, nil
	}

	opts, err := l.client.CallOpts(ctx)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := l.contract.Call(opts, &out, "deposits", new(big.Int).SetUint64(tokenID)); err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return &types.Deposit{
		Owner:          out[0].(common.Address),
		NumberOfStakes: out[1].(*big.Int).Uint64(),
	}, nil
}

// GetRewardInfo returns the reward accrued by a token under one
// incentive. The contract reverts for tokens not staked in that
// incentive, so an error here is an expected outcome for unstaked
// tokens, not a fault.
func (l *StakingLedger) GetRewardInfo(ctx context.Context, key types.IncentiveKey, tokenID uint64) (*big.Int, error) {
	if l.mockMode {
		id, err := key.Hash()
		if err != nil {
			return nil, err
		}
		l.mockMu.RLock()
		defer l.mockMu.RUnlock()
		if reward, ok := l.mockStakes[tokenID][id]; ok {
			return new(big.Int).Set(reward), nil
		}
		return nil, fmt.Errorf("token %d not staked in incentive", tokenID)
	}

	opts, err := l.client.CallOpts(ctx)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := l.contract.Call(opts, &out, "getRewardInfo", key, new(big.Int).SetUint64(tokenID)); err != nil {
		return nil, fmt.Errorf("failed to get reward info: %w", err)
	}
	return out[0].(*big.Int), nil
}

// Rewards returns the account's claimable balance for a reward token.
func (l *StakingLedger) Rewards(ctx context.Context, rewardToken, owner common.Address) (*big.Int, error) {
	if l.mockMode {
		l.mockMu.RLock()
		defer l.mockMu.RUnlock()
		if l.mockRewardsErr != nil {
			return nil, l.mockRewardsErr
		}
		if amount, ok := l.mockClaimable[rewardToken][owner]; ok {
			return new(big.Int).Set(amount), nil
		}
		return big.NewInt(0), nil
	}

	opts, err := l.client.CallOpts(ctx)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := l.contract.Call(opts, &out, "rewards", rewardToken, owner); err != nil {
		return nil, fmt.Errorf("failed to get claimable rewards: %w", err)
	}
	return out[0].(*big.Int), nil
}

// Incentives returns the ledger's accounting record for an incentive.
func (l *StakingLedger) Incentives(ctx context.Context, incentiveID common.Hash) (*IncentiveState, error) {
	if l.mockMode {
		l.mockMu.RLock()
		defer l.mockMu.RUnlock()
		state := &IncentiveState{TotalRewardUnclaimed: big.NewInt(0)}
		for _, stakes := range l.mockStakes {
			if _, ok := stakes[incentiveID]; ok {
				state.NumberOfStakes++
			}
		}
		return state, nil
	}

	opts, err := l.client.CallOpts(ctx)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := l.contract.Call(opts, &out, "incentives", incentiveID); err != nil {
		return nil, fmt.Errorf("failed to get incentive state: %w", err)
	}
	return &IncentiveState{
		TotalRewardUnclaimed: out[0].(*big.Int),
		NumberOfStakes:       out[2].(*big.Int).Uint64(),
	}, nil
}

// StakeToken stakes a deposited token into an incentive.
func (l *StakingLedger) StakeToken(ctx context.Context, key types.IncentiveKey, tokenID uint64) (*ethtypes.Transaction, error) {
	if l.mockMode {
		return nil, l.mockStakeToken(key, tokenID)
	}

	auth, err := l.signer(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := l.contract.Transact(auth, "stakeToken", key, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("failed to stake token: %w", err)
	}
	return tx, nil
}

func (l *StakingLedger) mockStakeToken(key types.IncentiveKey, tokenID uint64) error {
	id, err := key.Hash()
	if err != nil {
		return err
	}
	l.mockMu.Lock()
	defer l.mockMu.Unlock()
	d, ok := l.mockDeposits[tokenID]
	if !ok {
		return fmt.Errorf("token %d not deposited", tokenID)
	}
	if l.mockStakes[tokenID] == nil {
		l.mockStakes[tokenID] = make(map[common.Hash]*big.Int)
	}
	if _, staked := l.mockStakes[tokenID][id]; staked {
		return fmt.Errorf("token %d already staked in incentive", tokenID)
	}
	l.mockStakes[tokenID][id] = big.NewInt(0)
	d.NumberOfStakes++
	return nil
}

// UnstakeToken removes a token from an incentive, moving its accrued
// reward into the depositor's claimable balance.
func (l *StakingLedger) UnstakeToken(ctx context.Context, key types.IncentiveKey, tokenID uint64) (*ethtypes.Transaction, error) {
	if l.mockMode {
		return nil, l.mockUnstakeToken(key, tokenID)
	}

	auth, err := l.signer(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := l.contract.Transact(auth, "unstakeToken", key, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("failed to unstake token: %w", err)
	}
	return tx, nil
}

func (l *StakingLedger) mockUnstakeToken(key types.IncentiveKey, tokenID uint64) error {
	id, err := key.Hash()
	if err != nil {
		return err
	}
	l.mockMu.Lock()
	defer l.mockMu.Unlock()
	d, ok := l.mockDeposits[tokenID]
	if !ok {
		return fmt.Errorf("token %d not deposited", tokenID)
	}
	reward, staked := l.mockStakes[tokenID][id]
	if !staked {
		return fmt.Errorf("token %d not staked in incentive", tokenID)
	}
	delete(l.mockStakes[tokenID], id)
	d.NumberOfStakes--

	if l.mockClaimable[key.RewardToken] == nil {
		l.mockClaimable[key.RewardToken] = make(map[common.Address]*big.Int)
	}
	current := l.mockClaimable[key.RewardToken][d.Owner]
	if current == nil {
		current = big.NewInt(0)
	}
	l.mockClaimable[key.RewardToken][d.Owner] = new(big.Int).Add(current, reward)
	return nil
}

// WithdrawToken returns custody of a fully unstaked token to an address.
func (l *StakingLedger) WithdrawToken(ctx context.Context, tokenID uint64, to common.Address) (*ethtypes.Transaction, error) {
	if l.mockMode {
		l.mockMu.Lock()
		defer l.mockMu.Unlock()
		d, ok := l.mockDeposits[tokenID]
		if !ok {
			return nil, fmt.Errorf("token %d not deposited", tokenID)
		}
		if d.NumberOfStakes != 0 {
			return nil, fmt.Errorf("token %d still staked in %d incentives", tokenID, d.NumberOfStakes)
		}
		delete(l.mockDeposits, tokenID)
		return nil, nil
	}

	auth, err := l.signer(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := l.contract.Transact(auth, "withdrawToken", new(big.Int).SetUint64(tokenID), to, []byte{})
	if err != nil {
		return nil, fmt.Errorf("failed to withdraw token: %w", err)
	}
	return tx, nil
}

// ClaimReward transfers the claimable balance for a reward token to an
// address. A zero amountRequested claims the full balance.
func (l *StakingLedger) ClaimReward(ctx context.Context, rewardToken, to common.Address, amountRequested *big.Int) (*ethtypes.Transaction, error) {
	if l.mockMode {
		l.mockMu.Lock()
		defer l.mockMu.Unlock()
		if l.mockClaimable[rewardToken] != nil {
			l.mockClaimable[rewardToken][to] = big.NewInt(0)
		}
		return nil, nil
	}

	auth, err := l.signer(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := l.contract.Transact(auth, "claimReward", rewardToken, to, amountRequested)
	if err != nil {
		return nil, fmt.Errorf("failed to claim reward: %w", err)
	}
	return tx, nil
}
