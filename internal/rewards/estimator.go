package rewards

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stakemate/stakemate/internal/contracts"
	"github.com/stakemate/stakemate/internal/incentives"
	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/pkg/types"
)

// Estimator tracks the account's claimable reward balance for the
// current incentive's reward token, and probes per-position accrual on
// demand. The balance is refreshed after unstake and claim events; a
// session or incentive change invalidates it.
type Estimator struct {
	gateway   *contracts.Gateway
	directory *incentives.Directory

	mu        sync.RWMutex
	claimable *big.Int
	ready     bool

	listenerMu sync.Mutex
	listeners  []func()
}

// NewEstimator creates an estimator scoped to the gateway's session and
// the directory's current incentive.
func NewEstimator(gateway *contracts.Gateway, directory *incentives.Directory) *Estimator {
	e := &Estimator{gateway: gateway, directory: directory}
	gateway.OnChange(e.invalidate)
	directory.OnChange(e.invalidate)
	return e
}

func (e *Estimator) invalidate() {
	e.mu.Lock()
	e.claimable = nil
	e.ready = false
	e.mu.Unlock()
	e.notify()
}

// Claimable returns the last refreshed claimable balance. The second
// return is false until a refresh has published.
func (e *Estimator) Claimable() (*big.Int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return nil, false
	}
	return new(big.Int).Set(e.claimable), true
}

// Refresh re-reads the claimable balance from the ledger.
func (e *Estimator) Refresh(ctx context.Context) error {
	ledger, err := e.gateway.Ledger()
	if err != nil {
		return err
	}
	current, ok := e.directory.Current()
	if !ok {
		return fmt.Errorf("no incentive selected")
	}
	account := e.gateway.Account()
	if account == (common.Address{}) {
		return fmt.Errorf("no account connected")
	}

	amount, err := ledger.Rewards(ctx, current.Key.RewardToken, account)
	if err != nil {
		return fmt.Errorf("failed to refresh claimable rewards: %w", err)
	}

	e.mu.Lock()
	e.claimable = amount
	e.ready = true
	e.mu.Unlock()

	logging.Debug("claimable rewards refreshed", "amount", amount.String())
	e.notify()
	return nil
}

// PositionReward probes the accrued reward of one token under the
// current incentive. Unstaked tokens yield an unstaked result, mirroring
// the ledger's revert semantics.
func (e *Estimator) PositionReward(ctx context.Context, tokenID uint64) (types.RewardResult, error) {
	ledger, err := e.gateway.Ledger()
	if err != nil {
		return types.RewardResult{}, err
	}
	current, ok := e.directory.Current()
	if !ok {
		return types.RewardResult{}, fmt.Errorf("no incentive selected")
	}

	amount, err := ledger.GetRewardInfo(ctx, current.Key, tokenID)
	if err != nil {
		return types.Unstaked(), nil
	}
	return types.RewardResult{Staked: true, Amount: amount}, nil
}

// OnChange registers a listener invoked after every refresh or
// invalidation.
func (e *Estimator) OnChange(fn func()) {
	e.listenerMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenerMu.Unlock()
}

func (e *Estimator) notify() {
	e.listenerMu.Lock()
	listeners := make([]func(), len(e.listeners))
	copy(listeners, e.listeners)
	e.listenerMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
