package contracts

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/stakemate/stakemate/internal/chain"
)

// SignerFunc produces signing options for a write call. It fails with
// wallet.ErrNoSession when the session has no signing key.
type SignerFunc func(ctx context.Context) (*bind.TransactOpts, error)

// PositionInfo is the subset of on-chain position state the client uses.
type PositionInfo struct {
	Token0    common.Address
	Token1    common.Address
	Fee       *big.Int
	Liquidity *big.Int
}

// PositionRegistry provides an interface to the NFT position registry
// contract. Positions are ERC721 tokens; custody of a token moves to the
// staking ledger while it is deposited.
type PositionRegistry struct {
	client       *chain.Client
	signer       SignerFunc
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockMu     sync.RWMutex
	mockTokens map[uint64]*mockToken
}

type mockToken struct {
	owner     common.Address
	approved  common.Address
	liquidity *big.Int
}

// NewPositionRegistry creates a registry client bound to a connected
// chain client.
func NewPositionRegistry(client *chain.Client, signer SignerFunc, contractAddr common.Address) (*PositionRegistry, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is required (use NewMockPositionRegistry for testing)")
	}
	if !client.IsConnected() {
		return nil, fmt.Errorf("chain client not connected to RPC")
	}

	parsedABI, err := abi.JSON(strings.NewReader(PositionRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	backend := client.Client()
	return &PositionRegistry{
		client:       client,
		signer:       signer,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, backend, backend, backend),
		contractABI:  parsedABI,
		contractAddr: contractAddr,
		mockTokens:   make(map[uint64]*mockToken),
	}, nil
}

// NewMockPositionRegistry creates a registry with in-memory state for
// testing.
func NewMockPositionRegistry() *PositionRegistry {
	return &PositionRegistry{
		mockMode:   true,
		mockTokens: make(map[uint64]*mockToken),
	}
}

// IsMockMode returns whether running in mock mode.
func (r *PositionRegistry) IsMockMode() bool {
	return r.mockMode
}

// Address returns the registry contract address.
func (r *PositionRegistry) Address() common.Address {
	return r.contractAddr
}

// SetMockToken seeds a token in mock mode.
func (r *PositionRegistry) SetMockToken(tokenID uint64, owner common.Address, liquidity *big.Int) {
	r.mockMu.Lock()
	defer r.mockMu.Unlock()
	r.mockTokens[tokenID] = &mockToken{owner: owner, liquidity: new(big.Int).Set(liquidity)}
}

// BalanceOf returns the number of tokens held by owner.
func (r *PositionRegistry) BalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	if r.mockMode {
		r.mockMu.RLock()
		defer r.mockMu.RUnlock()
		var n uint64
		for _, t := range r.mockTokens {
			if t.owner == owner {
				n++
			}
		}
		return n, nil
	}

	opts, err := r.client.CallOpts(ctx)
	if err != nil {
		return 0, err
	}
	var out []interface{}
	if err := r.contract.Call(opts, &out, "balanceOf", owner); err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

// TokenOfOwnerByIndex returns the token id at the given index of the
// owner's enumeration.
func (r *PositionRegistry) TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index uint64) (uint64, error) {
	if r.mockMode {
		ids := r.mockOwnedTokens(owner)
		if index >= uint64(len(ids)) {
			return 0, fmt.Errorf("index out of bounds")
		}
		return ids[index], nil
	}

	opts, err := r.client.CallOpts(ctx)
	if err != nil {
		return 0, err
	}
	var out []interface{}
	if err := r.contract.Call(opts, &out, "tokenOfOwnerByIndex", owner, new(big.Int).SetUint64(index)); err != nil {
		return 0, fmt.Errorf("failed to enumerate tokens: %w", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

// OwnerOf returns the current custodian of a token.
func (r *PositionRegistry) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	if r.mockMode {
		r.mockMu.RLock()
		defer r.mockMu.RUnlock()
		t, ok := r.mockTokens[tokenID]
		if !ok {
			return common.Address{}, fmt.Errorf("unknown token %d", tokenID)
		}
		return t.owner, nil
	}

	opts, err := r.client.CallOpts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	var out []interface{}
	if err := r.contract.Call(opts, &out, "ownerOf", new(big.Int).SetUint64(tokenID)); err != nil {
		return common.Address{}, fmt.Errorf("failed to get owner: %w", err)
	}
	return out[0].(common.Address), nil
}

// GetApproved returns the approved spender of a token.
func (r *PositionRegistry) GetApproved(ctx context.Context, tokenID uint64) (common.Address, error) {
	if r.mockMode {
		r.mockMu.RLock()
		defer r.mockMu.RUnlock()
		t, ok := r.mockTokens[tokenID]
		if !ok {
			return common.Address{}, fmt.Errorf("unknown token %d", tokenID)
		}
		return t.approved, nil
	}

	opts, err := r.client.CallOpts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	var out []interface{}
	if err := r.contract.Call(opts, &out, "getApproved", new(big.Int).SetUint64(tokenID)); err != nil {
		return common.Address{}, fmt.Errorf("failed to get approval: %w", err)
	}
	return out[0].(common.Address), nil
}

// Positions returns the on-chain position record for a token.
func (r *PositionRegistry) Positions(ctx context.Context, tokenID uint64) (*PositionInfo, error) {
	if r.mockMode {
		r.mockMu.RLock()
		defer r.mockMu.RUnlock()
		t, ok := r.mockTokens[tokenID]
		if !ok {
			return nil, fmt.Errorf("unknown token %d", tokenID)
		}
		return &PositionInfo{Liquidity: new(big.Int).Set(t.liquidity), Fee: big.NewInt(0)}, nil
	}

	opts, err := r.client.CallOpts(ctx)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := r.contract.Call(opts, &out, "positions", new(big.Int).SetUint64(tokenID)); err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &PositionInfo{
		Token0:    out[2].(common.Address),
		Token1:    out[3].(common.Address),
		Fee:       out[4].(*big.Int),
		Liquidity: out[7].(*big.Int),
	}, nil
}

// Approve approves a spender for one token.
func (r *PositionRegistry) Approve(ctx context.Context, to common.Address, tokenID uint64) (*ethtypes.Transaction, error) {
	if r.mockMode {
		r.mockMu.Lock()
		defer r.mockMu.Unlock()
		t, ok := r.mockTokens[tokenID]
		if !ok {
			return nil, fmt.Errorf("unknown token %d", tokenID)
		}
		t.approved = to
		return nil, nil
	}

	auth, err := r.signer(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := r.contract.Transact(auth, "approve", to, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("failed to approve: %w", err)
	}
	return tx, nil
}

// SafeTransferFrom transfers a token between custodians. Transferring to
// the staking ledger creates a deposit on the ledger side.
func (r *PositionRegistry) SafeTransferFrom(ctx context.Context, from, to common.Address, tokenID uint64) (*ethtypes.Transaction, error) {
	if r.mockMode {
		r.mockMu.Lock()
		defer r.mockMu.Unlock()
		t, ok := r.mockTokens[tokenID]
		if !ok {
			return nil, fmt.Errorf("unknown token %d", tokenID)
		}
		if t.owner != from {
			return nil, fmt.Errorf("transfer from non-owner")
		}
		t.owner = to
		t.approved = common.Address{}
		return nil, nil
	}

	auth, err := r.signer(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := r.contract.Transact(auth, "safeTransferFrom", from, to, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, fmt.Errorf("failed to transfer: %w", err)
	}
	return tx, nil
}

func (r *PositionRegistry) mockOwnedTokens(owner common.Address) []uint64 {
	r.mockMu.RLock()
	defer r.mockMu.RUnlock()
	var ids []uint64
	for id, t := range r.mockTokens {
		if t.owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
