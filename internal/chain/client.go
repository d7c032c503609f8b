package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/internal/util"
)

// Config holds connection settings for one chain.
type Config struct {
	RPCURL             string
	WSEndpoint         string
	ChainID            int64
	BlockConfirmations int
	MaxGasPrice        *big.Int
	ReadsPerSecond     float64 // rate limit on read calls (0 = default)
	RetryConfig        *util.RetryConfig
}

// DefaultConfig returns sensible client defaults.
func DefaultConfig() *Config {
	return &Config{
		BlockConfirmations: 2,
		MaxGasPrice:        big.NewInt(300e9), // 300 gwei cap
		ReadsPerSecond:     20,
		RetryConfig:        util.DefaultRetryConfig(),
	}
}

// Client provides rate-limited access to one chain over HTTP RPC, with an
// optional WebSocket connection for event subscriptions.
type Client struct {
	config  *Config
	chainID *big.Int
	limiter *rate.Limiter

	mu        sync.RWMutex
	client    *ethclient.Client
	wsClient  *ethclient.Client
	connected bool
}

// NewClient creates a client for the configured chain. Call Connect
// before use.
func NewClient(config *Config) *Client {
	if config.RetryConfig == nil {
		config.RetryConfig = util.DefaultRetryConfig()
	}
	rps := config.ReadsPerSecond
	if rps <= 0 {
		rps = 20
	}
	return &Client{
		config:  config,
		chainID: big.NewInt(config.ChainID),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// Connect dials the HTTP endpoint, verifies the chain id and, when
// configured, dials the WebSocket endpoint. A failed WebSocket dial is
// not fatal; event subscriptions are simply unavailable.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, result := util.RetryWithValue(ctx, c.config.RetryConfig, func() (*ethclient.Client, error) {
		return ethclient.DialContext(ctx, c.config.RPCURL)
	})
	if result.LastError != nil {
		return fmt.Errorf("failed to connect to RPC: %w", result.LastError)
	}
	c.client = client

	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		c.client.Close()
		c.client = nil
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if chainID.Cmp(c.chainID) != 0 {
		c.client.Close()
		c.client = nil
		return fmt.Errorf("chain id mismatch: expected %d, got %d", c.chainID, chainID)
	}

	if c.config.WSEndpoint != "" {
		ws, err := ethclient.DialContext(ctx, c.config.WSEndpoint)
		if err != nil {
			logging.Warn("failed to connect WebSocket endpoint, subscriptions disabled",
				logging.Err(err))
		} else {
			c.wsClient = ws
		}
	}

	c.connected = true
	return nil
}

// Close closes both connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	if c.wsClient != nil {
		c.wsClient.Close()
		c.wsClient = nil
	}
	c.connected = false
}

// IsConnected reports whether the HTTP connection is established.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Client returns the underlying ethclient, or nil before Connect.
func (c *Client) Client() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// WSClient returns the WebSocket client for subscriptions, or nil.
func (c *Client) WSClient() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsClient
}

// HasWSConfig reports whether a WebSocket endpoint is configured.
func (c *Client) HasWSConfig() bool {
	return c.config.WSEndpoint != ""
}

// ReconnectWS re-dials the WebSocket endpoint after a dropped
// subscription.
func (c *Client) ReconnectWS(ctx context.Context) error {
	if c.config.WSEndpoint == "" {
		return fmt.Errorf("no WebSocket endpoint configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wsClient != nil {
		c.wsClient.Close()
		c.wsClient = nil
	}
	ws, err := ethclient.DialContext(ctx, c.config.WSEndpoint)
	if err != nil {
		return fmt.Errorf("failed to reconnect WebSocket: %w", err)
	}
	c.wsClient = ws
	return nil
}

// ChainID returns the configured chain id.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// CallOpts waits on the read rate limiter and returns call options bound
// to ctx. Every contract read goes through here.
func (c *Client) CallOpts(ctx context.Context) (*bind.CallOpts, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return &bind.CallOpts{Context: ctx}, nil
}

// DecorateTransactOpts fills in context and a capped gas price on
// signing options produced by the wallet session.
func (c *Client) DecorateTransactOpts(ctx context.Context, auth *bind.TransactOpts) (*bind.TransactOpts, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if c.config.MaxGasPrice != nil && gasPrice.Cmp(c.config.MaxGasPrice) > 0 {
		gasPrice = c.config.MaxGasPrice
	}

	auth.Context = ctx
	auth.GasPrice = gasPrice
	return auth, nil
}

// WaitForTransaction waits for a transaction to be mined and confirmed.
func (c *Client) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("transaction reverted: %s", tx.Hash().Hex())
	}

	if c.config.BlockConfirmations > 0 {
		targetBlock := receipt.BlockNumber.Uint64() + uint64(c.config.BlockConfirmations)
		for {
			select {
			case <-ctx.Done():
				return receipt, ctx.Err()
			case <-time.After(2 * time.Second):
				currentBlock, err := client.BlockNumber(ctx)
				if err != nil {
					continue // retry
				}
				if currentBlock >= targetBlock {
					return receipt, nil
				}
			}
		}
	}

	return receipt, nil
}

// BlockNumber returns the current block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return 0, fmt.Errorf("not connected")
	}
	return client.BlockNumber(ctx)
}
