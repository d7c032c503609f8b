package positions

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/stakemate/stakemate/internal/contracts"
	"github.com/stakemate/stakemate/internal/incentives"
	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/pkg/types"
)

// reloadConcurrency bounds the per-token loads running in parallel
// during a full reload.
const reloadConcurrency = 8

// Synchronizer maintains the published collection of the connected
// account's positions. A full Reload rebuilds it from chain state; in
// between, ledger events patch individual entries. Every published
// collection is sorted by token id and scoped to one session generation:
// a session or incentive change while a reload is in flight makes that
// reload's result stale, and stale results are discarded instead of
// published.
type Synchronizer struct {
	gateway   *contracts.Gateway
	directory *incentives.Directory

	generation atomic.Uint64

	mu        sync.RWMutex
	positions []types.Position
	ready     bool

	listenerMu sync.Mutex
	listeners  []func()
}

// NewSynchronizer creates a synchronizer over the gateway's contracts.
// Session and incentive changes invalidate the published collection.
func NewSynchronizer(gateway *contracts.Gateway, directory *incentives.Directory) *Synchronizer {
	s := &Synchronizer{gateway: gateway, directory: directory}
	gateway.OnChange(s.invalidate)
	directory.OnChange(s.invalidate)
	return s
}

// invalidate bumps the generation so in-flight reloads discard their
// results, and clears the published collection.
func (s *Synchronizer) invalidate() {
	s.generation.Add(1)
	s.mu.Lock()
	s.positions = nil
	s.ready = false
	s.mu.Unlock()
	s.notify()
}

// Positions returns a copy of the published collection, sorted by token
// id ascending.
func (s *Synchronizer) Positions() []types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Position, len(s.positions))
	copy(out, s.positions)
	return out
}

// Ready reports whether a reload has published since the last
// invalidation.
func (s *Synchronizer) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Reload rebuilds the collection from chain state. Tokens are enumerated
// under both custodians (the account itself and the staking ledger),
// zero-liquidity positions are dropped, and tokens deposited by other
// accounts are filtered out. Unmet preconditions clear the collection
// rather than keeping stale entries.
func (s *Synchronizer) Reload(ctx context.Context) error {
	gen := s.generation.Load()
	start := time.Now()

	registry, err := s.gateway.Registry()
	if err != nil {
		s.clear(gen)
		return err
	}
	ledger, err := s.gateway.Ledger()
	if err != nil {
		s.clear(gen)
		return err
	}
	current, ok := s.directory.Current()
	if !ok {
		s.clear(gen)
		return fmt.Errorf("no incentive selected")
	}
	account := s.gateway.Account()
	if account == (common.Address{}) {
		s.clear(gen)
		return fmt.Errorf("no account connected")
	}

	custodians := []common.Address{account, ledger.Address()}

	var loadMu sync.Mutex
	loaded := make(map[uint64]types.Position)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reloadConcurrency)

	for _, custodian := range custodians {
		n, err := registry.BalanceOf(ctx, custodian)
		if err != nil {
			s.clear(gen)
			return fmt.Errorf("failed to enumerate custodian %s: %w", custodian.Hex(), err)
		}
		for i := uint64(0); i < n; i++ {
			custodian, i := custodian, i
			g.Go(func() error {
				tokenID, err := registry.TokenOfOwnerByIndex(gctx, custodian, i)
				if err != nil {
					return err
				}
				pos, err := s.loadToken(gctx, registry, ledger, current.Key, account, custodian, tokenID)
				if err != nil {
					return err
				}
				if pos == nil {
					return nil
				}
				loadMu.Lock()
				loaded[pos.TokenID] = *pos
				loadMu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		s.clear(gen)
		return fmt.Errorf("position reload failed: %w", err)
	}

	list := make([]types.Position, 0, len(loaded))
	for _, pos := range loaded {
		list = append(list, pos)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TokenID < list[j].TokenID })

	if !s.publish(gen, list) {
		logging.Info("discarding stale position reload")
		return nil
	}

	logging.Info("positions reloaded",
		"count", len(list),
		"duration_ms", time.Since(start).Milliseconds())
	s.notify()
	return nil
}

// loadToken resolves one enumerated token to a position, or nil when the
// token is filtered out of the collection.
func (s *Synchronizer) loadToken(ctx context.Context, registry *contracts.PositionRegistry, ledger *contracts.StakingLedger, key types.IncentiveKey, account, custodian common.Address, tokenID uint64) (*types.Position, error) {
	info, err := registry.Positions(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if info.Liquidity.Sign() == 0 {
		return nil, nil
	}

	// The deposit record is authoritative for ownership once the ledger
	// holds custody.
	if custodian != account {
		deposit, err := ledger.Deposits(ctx, tokenID)
		if err != nil {
			return nil, err
		}
		if deposit.Owner != account {
			return nil, nil
		}
	}

	reward := s.probeReward(ctx, ledger, key, tokenID)
	return &types.Position{
		TokenID: tokenID,
		Owner:   account,
		Staked:  reward.Staked,
		Reward:  reward.Amount,
	}, nil
}

// probeReward asks the ledger for the token's accrued reward under the
// incentive. The ledger reverts for unstaked tokens, so errors map to an
// unstaked result rather than failing the reload.
func (s *Synchronizer) probeReward(ctx context.Context, ledger *contracts.StakingLedger, key types.IncentiveKey, tokenID uint64) types.RewardResult {
	amount, err := ledger.GetRewardInfo(ctx, key, tokenID)
	if err != nil {
		return types.Unstaked()
	}
	return types.RewardResult{Staked: true, Amount: amount}
}

// publish installs a reload result unless the generation moved on.
func (s *Synchronizer) publish(gen uint64, list []types.Position) bool {
	if s.generation.Load() != gen {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation.Load() != gen {
		return false
	}
	s.positions = list
	s.ready = true
	return true
}

// clear empties the collection for an unmet precondition, unless a newer
// generation already took over.
func (s *Synchronizer) clear(gen uint64) {
	if s.generation.Load() != gen {
		return
	}
	s.mu.Lock()
	s.positions = nil
	s.ready = false
	s.mu.Unlock()
	s.notify()
}

// ApplyStaked patches one position to staked. Events for tokens outside
// the collection are ignored; reapplying is a no-op, so replayed or
// backfilled logs are safe.
func (s *Synchronizer) ApplyStaked(tokenID uint64, reward *big.Int) {
	s.mu.Lock()
	changed := false
	for i := range s.positions {
		if s.positions[i].TokenID == tokenID {
			if !s.positions[i].Staked {
				s.positions[i].Staked = true
				changed = true
			}
			if reward != nil {
				s.positions[i].Reward = new(big.Int).Set(reward)
			}
			break
		}
	}
	s.mu.Unlock()

	if changed {
		logging.Debug("position patched staked", logging.TokenID(tokenID))
		s.notify()
	}
}

// ApplyUnstaked patches one position to unstaked, zeroing its accrued
// reward display. Idempotent like ApplyStaked.
func (s *Synchronizer) ApplyUnstaked(tokenID uint64) {
	s.mu.Lock()
	changed := false
	for i := range s.positions {
		if s.positions[i].TokenID == tokenID {
			if s.positions[i].Staked {
				s.positions[i].Staked = false
				s.positions[i].Reward = big.NewInt(0)
				changed = true
			}
			break
		}
	}
	s.mu.Unlock()

	if changed {
		logging.Debug("position patched unstaked", logging.TokenID(tokenID))
		s.notify()
	}
}

// Remove drops one position from the collection after a withdraw.
func (s *Synchronizer) Remove(tokenID uint64) {
	s.mu.Lock()
	changed := false
	for i := range s.positions {
		if s.positions[i].TokenID == tokenID {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			changed = true
			break
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// OnChange registers a listener invoked after every publish, patch or
// invalidation.
func (s *Synchronizer) OnChange(fn func()) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

func (s *Synchronizer) notify() {
	s.listenerMu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
