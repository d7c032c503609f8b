package contracts

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/stakemate/stakemate/internal/chain"
	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/internal/util"
)

const (
	eventBackfillBlocks = 100 // blocks to backfill on reconnect
	eventReconnectBase  = 2 * time.Second
	eventReconnectMax   = 60 * time.Second
	eventChannelBuffer  = 64
)

// LedgerWatcher manages WebSocket subscriptions to the staking ledger's
// events with automatic reconnection. Staked/unstaked events drive
// incremental position patching; claim events invalidate the claimable
// reward balance.
type LedgerWatcher struct {
	client *chain.Client
	ledger *StakingLedger

	stakedEvents   chan *TokenStakedEvent
	unstakedEvents chan *TokenUnstakedEvent
	claimEvents    chan *RewardClaimedEvent

	lastBlock atomic.Uint64
	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewLedgerWatcher creates a watcher over the ledger's event stream.
func NewLedgerWatcher(client *chain.Client, ledger *StakingLedger) *LedgerWatcher {
	return &LedgerWatcher{
		client:         client,
		ledger:         ledger,
		stakedEvents:   make(chan *TokenStakedEvent, eventChannelBuffer),
		unstakedEvents: make(chan *TokenUnstakedEvent, eventChannelBuffer),
		claimEvents:    make(chan *RewardClaimedEvent, eventChannelBuffer),
	}
}

// Start begins watching ledger events. Without a WebSocket endpoint the
// watcher stays idle and the client falls back to full reloads.
func (w *LedgerWatcher) Start(ctx context.Context) error {
	if w.running.Load() {
		return nil
	}

	if w.client == nil || !w.client.IsConnected() {
		logging.Info("ledger watcher: no chain connection, skipping")
		return nil
	}
	if !w.client.HasWSConfig() {
		logging.Info("ledger watcher: no WebSocket endpoint configured, event patching disabled")
		return nil
	}

	// Snapshot current block for backfill baseline
	if blockNum, err := w.client.BlockNumber(ctx); err == nil {
		w.lastBlock.Store(blockNum)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.running.Store(true)

	w.wg.Add(1)
	util.SafeGoWithName("ledger-watcher", func() {
		defer w.wg.Done()
		w.watchLedgerEvents(ctx)
	})

	logging.Info("ledger watcher started", "block", w.lastBlock.Load())
	return nil
}

// Stop stops the watcher and closes the event channels so consumers
// ranging over them unblock.
func (w *LedgerWatcher) Stop() {
	if !w.running.Load() {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.running.Store(false)

	close(w.stakedEvents)
	close(w.unstakedEvents)
	close(w.claimEvents)

	logging.Info("ledger watcher stopped")
}

// StakedEvents returns the channel of TokenStaked events.
func (w *LedgerWatcher) StakedEvents() <-chan *TokenStakedEvent {
	return w.stakedEvents
}

// UnstakedEvents returns the channel of TokenUnstaked events.
func (w *LedgerWatcher) UnstakedEvents() <-chan *TokenUnstakedEvent {
	return w.unstakedEvents
}

// ClaimEvents returns the channel of RewardClaimed events.
func (w *LedgerWatcher) ClaimEvents() <-chan *RewardClaimedEvent {
	return w.claimEvents
}

func (w *LedgerWatcher) watchLedgerEvents(ctx context.Context) {
	topics := []common.Hash{
		w.ledger.EventID(EventTokenStaked),
		w.ledger.EventID(EventTokenUnstaked),
		w.ledger.EventID(EventRewardClaimed),
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{w.ledger.Address()},
		Topics:    [][]common.Hash{topics},
	}
	w.subscribeWithReconnect(ctx, query, w.dispatch)
}

// dispatch routes one raw log onto its typed channel.
func (w *LedgerWatcher) dispatch(log ethtypes.Log) {
	switch log.Topics[0] {
	case w.ledger.EventID(EventTokenStaked):
		event, err := w.ledger.ParseTokenStaked(log)
		if err != nil {
			logging.Warn("ledger watcher: bad TokenStaked log", logging.Err(err))
			return
		}
		select {
		case w.stakedEvents <- event:
		default:
			logging.Warn("ledger watcher: staked channel full, dropping")
		}
	case w.ledger.EventID(EventTokenUnstaked):
		event, err := w.ledger.ParseTokenUnstaked(log)
		if err != nil {
			logging.Warn("ledger watcher: bad TokenUnstaked log", logging.Err(err))
			return
		}
		select {
		case w.unstakedEvents <- event:
		default:
			logging.Warn("ledger watcher: unstaked channel full, dropping")
		}
	case w.ledger.EventID(EventRewardClaimed):
		event, err := w.ledger.ParseRewardClaimed(log)
		if err != nil {
			logging.Warn("ledger watcher: bad RewardClaimed log", logging.Err(err))
			return
		}
		select {
		case w.claimEvents <- event:
		default:
			logging.Warn("ledger watcher: claim channel full, dropping")
		}
	}
}

// subscribeWithReconnect manages the subscription with exponential
// backoff reconnection and block backfill across gaps.
func (w *LedgerWatcher) subscribeWithReconnect(ctx context.Context, query ethereum.FilterQuery, handler func(ethtypes.Log)) {
	delay := eventReconnectBase

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wsClient := w.client.WSClient()
		if wsClient == nil {
			if err := w.client.ReconnectWS(ctx); err != nil {
				logging.Warn("ledger watcher: WS reconnect failed", logging.Err(err))
				if !w.sleepOrDone(ctx, delay) {
					return
				}
				delay = w.nextDelay(delay)
				continue
			}
			wsClient = w.client.WSClient()
			if wsClient == nil {
				if !w.sleepOrDone(ctx, delay) {
					return
				}
				delay = w.nextDelay(delay)
				continue
			}
		}

		// Catch up on logs missed during the gap
		w.backfill(ctx, query, handler)

		logs := make(chan ethtypes.Log, 16)
		sub, err := wsClient.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			logging.Warn("ledger watcher: subscribe failed", logging.Err(err))
			if !w.sleepOrDone(ctx, delay) {
				return
			}
			delay = w.nextDelay(delay)
			continue
		}

		delay = eventReconnectBase
		logging.Info("ledger watcher: subscribed")

		done := w.processEvents(ctx, sub, logs, handler)
		sub.Unsubscribe()
		if done {
			return
		}

		_ = w.client.ReconnectWS(ctx)
	}
}

// processEvents reads logs until the context ends (returns true) or the
// subscription errors (returns false, caller reconnects).
func (w *LedgerWatcher) processEvents(ctx context.Context, sub ethereum.Subscription, logs <-chan ethtypes.Log, handler func(ethtypes.Log)) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case err := <-sub.Err():
			if err != nil {
				logging.Warn("ledger watcher: subscription error", logging.Err(err))
			}
			return false
		case log := <-logs:
			if log.BlockNumber > w.lastBlock.Load() {
				w.lastBlock.Store(log.BlockNumber)
			}
			handler(log)
		}
	}
}

// backfill queries historical logs from the last seen block so events
// missed during a subscription gap still reach consumers.
func (w *LedgerWatcher) backfill(ctx context.Context, query ethereum.FilterQuery, handler func(ethtypes.Log)) {
	last := w.lastBlock.Load()
	if last == 0 {
		return
	}

	client := w.client.Client()
	if client == nil {
		return
	}

	fromBlock := last
	if fromBlock > eventBackfillBlocks {
		fromBlock = last - eventBackfillBlocks
	}

	logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: query.Addresses,
		Topics:    query.Topics,
	})
	if err != nil {
		logging.Warn("ledger watcher: backfill failed", logging.Err(err))
		return
	}

	for _, log := range logs {
		if log.BlockNumber > last {
			handler(log)
			if log.BlockNumber > w.lastBlock.Load() {
				w.lastBlock.Store(log.BlockNumber)
			}
		}
	}

	if len(logs) > 0 {
		logging.Info("ledger watcher: backfilled events", "count", len(logs), "from_block", fromBlock)
	}
}

func (w *LedgerWatcher) sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (w *LedgerWatcher) nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > eventReconnectMax {
		next = eventReconnectMax
	}
	return next
}
