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

	"github.com/stakemate/stakemate/internal/chain"
)

// TokenInfo is the display metadata and balance for an ERC-20 token.
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Balance  *big.Int       `json:"balance"`
}

// Token provides read access to an ERC-20 token, used for the reward
// token's metadata and the connected account's balance.
type Token struct {
	client       *chain.Client
	contract     *bind.BoundContract
	contractAddr common.Address
	mockMode     bool

	// Symbol and decimals are immutable on-chain; cache after first read.
	metaMu   sync.Mutex
	symbol   string
	decimals uint8
	hasMeta  bool

	// Mock state
	mockMu       sync.RWMutex
	mockBalances map[common.Address]*big.Int
}

// NewToken creates a token client bound to a connected chain client.
func NewToken(client *chain.Client, contractAddr common.Address) (*Token, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is required (use NewMockToken for testing)")
	}
	if !client.IsConnected() {
		return nil, fmt.Errorf("chain client not connected to RPC")
	}

	parsedABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	backend := client.Client()
	return &Token{
		client:       client,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, backend, backend, backend),
		contractAddr: contractAddr,
		mockBalances: make(map[common.Address]*big.Int),
	}, nil
}

// NewMockToken creates a token with fixed metadata and in-memory
// balances for testing.
func NewMockToken(addr common.Address, symbol string, decimals uint8) *Token {
	return &Token{
		mockMode:     true,
		contractAddr: addr,
		symbol:       symbol,
		decimals:     decimals,
		hasMeta:      true,
		mockBalances: make(map[common.Address]*big.Int),
	}
}

// Address returns the token contract address.
func (t *Token) Address() common.Address {
	return t.contractAddr
}

// SetMockBalance seeds an account balance in mock mode.
func (t *Token) SetMockBalance(account common.Address, amount *big.Int) {
	t.mockMu.Lock()
	defer t.mockMu.Unlock()
	t.mockBalances[account] = new(big.Int).Set(amount)
}

// BalanceOf returns the token balance of an account.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if t.mockMode {
		t.mockMu.RLock()
		defer t.mockMu.RUnlock()
		if bal, ok := t.mockBalances[account]; ok {
			return new(big.Int).Set(bal), nil
		}
		return big.NewInt(0), nil
	}

	opts, err := t.client.CallOpts(ctx)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := t.contract.Call(opts, &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	return out[0].(*big.Int), nil
}

// Symbol returns the token's symbol.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	if err := t.loadMeta(ctx); err != nil {
		return "", err
	}
	return t.symbol, nil
}

// Decimals returns the token's decimal count.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	if err := t.loadMeta(ctx); err != nil {
		return 0, err
	}
	return t.decimals, nil
}

// Info returns metadata plus the account's balance in one call.
func (t *Token) Info(ctx context.Context, account common.Address) (*TokenInfo, error) {
	if err := t.loadMeta(ctx); err != nil {
		return nil, err
	}
	balance, err := t.BalanceOf(ctx, account)
	if err != nil {
		return nil, err
	}
	return &TokenInfo{
		Address:  t.contractAddr,
		Symbol:   t.symbol,
		Decimals: t.decimals,
		Balance:  balance,
	}, nil
}

func (t *Token) loadMeta(ctx context.Context) error {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	if t.hasMeta {
		return nil
	}

	opts, err := t.client.CallOpts(ctx)
	if err != nil {
		return err
	}
	var out []interface{}
	if err := t.contract.Call(opts, &out, "symbol"); err != nil {
		return fmt.Errorf("failed to get token symbol: %w", err)
	}
	symbol := out[0].(string)

	out = nil
	if err := t.contract.Call(opts, &out, "decimals"); err != nil {
		return fmt.Errorf("failed to get token decimals: %w", err)
	}

	t.symbol = symbol
	t.decimals = out[0].(uint8)
	t.hasMeta = true
	return nil
}
