package contracts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stakemate/stakemate/internal/chain"
	"github.com/stakemate/stakemate/internal/config"
	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/internal/wallet"
)

// ErrNotReady is returned by gateway accessors while no session is
// active. Callers treat it as "no data yet", not a fault.
var ErrNotReady = fmt.Errorf("contract gateway not ready: no active session")

// Gateway owns the contract handles for the current wallet session. All
// handles are scoped to one session generation: a connect, disconnect or
// network switch tears everything down and rebuilds it, then notifies
// registered listeners so downstream state can invalidate.
type Gateway struct {
	cfg      *config.Config
	session  *wallet.Session
	mockMode bool

	mu       sync.RWMutex
	netCfg   *config.NetworkConfig
	client   *chain.Client
	registry *PositionRegistry
	ledger   *StakingLedger
	token    *Token

	listenerMu sync.Mutex
	listeners  []func()
}

// NewGateway creates a gateway bound to the session. It registers for
// session changes; call Rebind once after construction to pick up a
// restored session.
func NewGateway(cfg *config.Config, session *wallet.Session) *Gateway {
	g := &Gateway{cfg: cfg, session: session}
	session.OnChange(func() {
		if err := g.Rebind(); err != nil {
			logging.Error("failed to rebind contracts after session change", logging.Err(err))
		}
	})
	return g
}

// NewMockGateway creates a ready gateway around mock contracts for
// testing. Session changes only notify listeners; the mocks stay bound.
func NewMockGateway(session *wallet.Session, netCfg *config.NetworkConfig, registry *PositionRegistry, ledger *StakingLedger) *Gateway {
	g := &Gateway{
		session:  session,
		mockMode: true,
		netCfg:   netCfg,
		registry: registry,
		ledger:   ledger,
	}
	session.OnChange(g.notify)
	return g
}

// Rebind tears down the current handles and, when a session is active,
// dials the session's network and rebuilds them.
func (g *Gateway) Rebind() error {
	if g.mockMode {
		g.notify()
		return nil
	}

	g.mu.Lock()
	if g.client != nil {
		g.client.Close()
	}
	g.client = nil
	g.registry = nil
	g.ledger = nil
	g.token = nil
	g.netCfg = nil
	g.mu.Unlock()

	if !g.session.Connected() {
		g.notify()
		return nil
	}

	netCfg, ok := g.cfg.Network(g.session.Network())
	if !ok {
		g.notify()
		return fmt.Errorf("network %q not configured", g.session.Network())
	}

	client := chain.NewClient(&chain.Config{
		RPCURL:             netCfg.RPCURL,
		WSEndpoint:         netCfg.WSEndpoint,
		ChainID:            netCfg.ChainID,
		BlockConfirmations: g.cfg.Daemon.BlockConfirmations,
		MaxGasPrice:        g.cfg.Daemon.MaxGasPriceWei(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		g.notify()
		return fmt.Errorf("failed to connect chain client: %w", err)
	}

	signer := g.signerFunc(client)
	registry, err := NewPositionRegistry(client, signer, common.HexToAddress(netCfg.PositionRegistry))
	if err != nil {
		client.Close()
		g.notify()
		return err
	}
	ledger, err := NewStakingLedger(client, signer, common.HexToAddress(netCfg.StakingLedger))
	if err != nil {
		client.Close()
		g.notify()
		return err
	}

	// The reward token is optional per network; status and reward views
	// degrade without it.
	var token *Token
	if netCfg.RewardToken != "" {
		token, err = NewToken(client, common.HexToAddress(netCfg.RewardToken))
		if err != nil {
			client.Close()
			g.notify()
			return err
		}
	}

	g.mu.Lock()
	g.netCfg = &netCfg
	g.client = client
	g.registry = registry
	g.ledger = ledger
	g.token = token
	g.mu.Unlock()

	logging.Info("contract gateway bound",
		logging.Network(string(g.session.Network())),
		logging.Address(g.session.Address().Hex()))
	g.notify()
	return nil
}

func (g *Gateway) signerFunc(client *chain.Client) SignerFunc {
	return func(ctx context.Context) (*bind.TransactOpts, error) {
		auth, err := g.session.TransactOpts(client.ChainID())
		if err != nil {
			return nil, err
		}
		return client.DecorateTransactOpts(ctx, auth)
	}
}

// Ready reports whether contract handles are bound.
func (g *Gateway) Ready() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.registry != nil && g.ledger != nil
}

// Registry returns the position registry handle, or ErrNotReady.
func (g *Gateway) Registry() (*PositionRegistry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.registry == nil {
		return nil, ErrNotReady
	}
	return g.registry, nil
}

// Ledger returns the staking ledger handle, or ErrNotReady.
func (g *Gateway) Ledger() (*StakingLedger, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.ledger == nil {
		return nil, ErrNotReady
	}
	return g.ledger, nil
}

// RewardToken returns the reward token handle, or ErrNotReady when
// unbound or unconfigured for the network.
func (g *Gateway) RewardToken() (*Token, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token == nil {
		return nil, ErrNotReady
	}
	return g.token, nil
}

// SetRewardToken injects a token handle, used with mock gateways.
func (g *Gateway) SetRewardToken(token *Token) {
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

// Client returns the chain client for the bound network, or nil in mock
// mode or while unbound.
func (g *Gateway) Client() *chain.Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

// NetworkConfig returns the bound network's configuration, or
// ErrNotReady.
func (g *Gateway) NetworkConfig() (*config.NetworkConfig, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.netCfg == nil {
		return nil, ErrNotReady
	}
	return g.netCfg, nil
}

// Session returns the wallet session the gateway is scoped to.
func (g *Gateway) Session() *wallet.Session {
	return g.session
}

// Account returns the session's address (zero while disconnected).
func (g *Gateway) Account() common.Address {
	return g.session.Address()
}

// OnChange registers a listener invoked after every rebind.
func (g *Gateway) OnChange(fn func()) {
	g.listenerMu.Lock()
	g.listeners = append(g.listeners, fn)
	g.listenerMu.Unlock()
}

func (g *Gateway) notify() {
	g.listenerMu.Lock()
	listeners := make([]func(), len(g.listeners))
	copy(listeners, g.listeners)
	g.listenerMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Close tears down the bound chain client.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
	g.registry = nil
	g.ledger = nil
	g.token = nil
	g.netCfg = nil
}
