package daemon

import (
	"context"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stakemate/stakemate/internal/config"
	"github.com/stakemate/stakemate/internal/contracts"
	"github.com/stakemate/stakemate/internal/incentives"
	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/internal/metrics"
	"github.com/stakemate/stakemate/internal/positions"
	"github.com/stakemate/stakemate/internal/rewards"
	"github.com/stakemate/stakemate/internal/txflow"
	"github.com/stakemate/stakemate/internal/util"
	"github.com/stakemate/stakemate/internal/wallet"
)

// reloadInterval is the periodic full-reload cadence, the fallback sync
// path when no WebSocket endpoint is configured.
const reloadInterval = 5 * time.Minute

// Daemon wires the client stack: wallet session, contract gateway,
// incentive directory, position synchronizer, reward estimator and
// mutation flows, plus the HTTP API and metrics endpoints.
type Daemon struct {
	cfg        *config.Config
	configPath string

	session   *wallet.Session
	gateway   *contracts.Gateway
	directory *incentives.Directory
	sync      *positions.Synchronizer
	estimator *rewards.Estimator
	flows     *txflow.Flows
	collector *metrics.Collector
	hub       *streamHub

	mu      sync.Mutex
	watcher *contracts.LedgerWatcher
	stopped bool

	httpServer    *http.Server
	metricsServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a daemon from configuration. configPath may be empty; when
// set, the daemon reloads the incentive directory on config changes.
func New(cfg *config.Config, configPath string) *Daemon {
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		collector:  metrics.NewCollector(),
		hub:        newStreamHub(),
	}

	d.session = wallet.NewSession(cfg.WalletCachePath())
	d.gateway = contracts.NewGateway(cfg, d.session)
	d.directory = incentives.NewDirectory()
	d.sync = positions.NewSynchronizer(d.gateway, d.directory)
	d.estimator = rewards.NewEstimator(d.gateway, d.directory)
	d.flows = txflow.NewFlows(d.gateway, d.directory, d.sync, d.estimator,
		txflow.NotifierFunc(d.onNotification))

	d.sync.OnChange(d.onPositionsChange)
	d.estimator.OnChange(d.onRewardsChange)
	return d
}

// NewWithGateway builds a daemon around a prebuilt gateway, used by
// tests to inject mock contracts.
func NewWithGateway(cfg *config.Config, gateway *contracts.Gateway) *Daemon {
	d := &Daemon{
		cfg:       cfg,
		collector: metrics.NewCollector(),
		hub:       newStreamHub(),
	}
	d.session = gateway.Session()
	d.gateway = gateway
	d.directory = incentives.NewDirectory()
	d.sync = positions.NewSynchronizer(d.gateway, d.directory)
	d.estimator = rewards.NewEstimator(d.gateway, d.directory)
	d.flows = txflow.NewFlows(d.gateway, d.directory, d.sync, d.estimator,
		txflow.NotifierFunc(d.onNotification))

	d.sync.OnChange(d.onPositionsChange)
	d.estimator.OnChange(d.onRewardsChange)
	return d
}

// Start brings the daemon up: restores the cached session, binds the
// gateway, starts the API servers and the background sync loops.
func (d *Daemon) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	// React to every rebind after this point.
	d.gateway.OnChange(d.onGatewayChange)

	if restored, err := d.session.Restore(); err != nil {
		logging.Warn("failed to restore wallet session", logging.Err(err))
	} else if restored {
		logging.Info("wallet session restored",
			logging.Network(string(d.session.Network())),
			logging.Address(d.session.Address().Hex()))
	}
	if d.gateway.Ready() {
		d.refresh(d.ctx)
		d.restartWatcher()
	}

	if d.configPath != "" {
		if err := config.Watch(d.ctx, d.configPath, d.onConfigChange); err != nil {
			logging.Warn("config watch disabled", logging.Err(err))
		}
	}

	d.wg.Add(2)
	util.SafeGoWithName("stream-hub", func() {
		defer d.wg.Done()
		d.hub.run(d.ctx)
	})
	util.SafeGoWithName("reload-loop", func() {
		defer d.wg.Done()
		d.reloadLoop(d.ctx)
	})

	if err := d.startHTTP(); err != nil {
		return err
	}
	logging.Info("daemon started", "listen", d.cfg.Daemon.ListenAddr)
	return nil
}

// Stop shuts the daemon down and waits for background work to finish.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if d.httpServer != nil {
		_ = d.httpServer.Shutdown(shutdownCtx)
	}
	if d.metricsServer != nil {
		_ = d.metricsServer.Shutdown(shutdownCtx)
	}

	d.stopWatcher()
	// A gateway rebind may still be in flight; mark the daemon stopped
	// under the same lock restartWatcher takes, so no consumer is added
	// to the wait group after this point.
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.wg.Wait()
	d.gateway.Close()
	logging.Info("daemon stopped")
}

// onGatewayChange runs after every session-driven rebind: rebuild the
// directory and collection for the new scope, or clear them when the
// session went away.
func (d *Daemon) onGatewayChange() {
	if d.ctx == nil || d.ctx.Err() != nil {
		return
	}
	util.SafeGoWithName("gateway-refresh", func() {
		d.stopWatcher()
		if d.gateway.Ready() {
			d.refresh(d.ctx)
			d.restartWatcher()
		} else {
			d.directory.Clear()
		}
		d.hub.broadcast(streamMessage{Type: "incentives", Data: d.incentiveView()})
	})
}

// onConfigChange re-reads configuration and reloads the incentive
// directory for the bound network.
func (d *Daemon) onConfigChange(cfg *config.Config) {
	d.cfg.Networks = cfg.Networks
	logging.Info("configuration reloaded")
	if d.gateway.Ready() {
		d.refresh(d.ctx)
	}
}

// refresh rebuilds directory, positions and rewards for the bound
// session.
func (d *Daemon) refresh(ctx context.Context) {
	netCfg, err := d.gateway.NetworkConfig()
	if err != nil {
		return
	}
	if err := d.directory.Load(ctx, netCfg); err != nil {
		logging.Warn("failed to load incentive directory", logging.Err(err))
		return
	}

	if err := d.resync(ctx); err != nil {
		logging.Warn("position reload failed", logging.Err(err))
	}
}

// resync rebuilds positions and rewards, recording the reload outcome.
// A failed reward refresh is logged but does not fail the resync: the
// position collection stays valid without reward figures.
func (d *Daemon) resync(ctx context.Context) error {
	start := time.Now()
	err := d.sync.Reload(ctx)
	d.collector.ObserveReload(time.Since(start), err)
	if err != nil {
		return err
	}
	if err := d.estimator.Refresh(ctx); err != nil {
		logging.Warn("reward refresh failed", logging.Err(err))
	}
	return nil
}

// reloadLoop periodically refreshes the collection, covering setups
// without event subscriptions.
func (d *Daemon) reloadLoop(ctx context.Context) {
	ticker := time.NewTicker(reloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.gateway.Ready() {
				continue
			}
			if err := d.resync(ctx); err != nil {
				logging.Warn("periodic reload failed", logging.Err(err))
			}
		}
	}
}

// restartWatcher starts a ledger event watcher for the current binding
// and a consumer that patches published state from its events.
func (d *Daemon) restartWatcher() {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Rebinds can land after Stop has drained the wait group; a stopped
	// daemon must not pick up a new consumer.
	if d.stopped || d.watcher != nil {
		return
	}
	client := d.gateway.Client()
	ledger, err := d.gateway.Ledger()
	if err != nil || client == nil {
		return
	}
	watcher := contracts.NewLedgerWatcher(client, ledger)
	if err := watcher.Start(d.ctx); err != nil {
		logging.Warn("failed to start ledger watcher", logging.Err(err))
		return
	}
	d.watcher = watcher

	d.wg.Add(1)
	util.SafeGoWithName("event-consumer", func() {
		defer d.wg.Done()
		d.consumeEvents(d.ctx, watcher)
	})
}

func (d *Daemon) stopWatcher() {
	d.mu.Lock()
	watcher := d.watcher
	d.watcher = nil
	d.mu.Unlock()
	if watcher != nil {
		watcher.Stop()
	}
}

// consumeEvents applies ledger events to published state. Events are
// scoped to the current incentive by their incentive id; events for
// other incentives and unknown tokens fall through harmlessly.
func (d *Daemon) consumeEvents(ctx context.Context, watcher *contracts.LedgerWatcher) {
	staked := watcher.StakedEvents()
	unstaked := watcher.UnstakedEvents()
	claims := watcher.ClaimEvents()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-staked:
			if !ok {
				return
			}
			d.handleStakedEvent(ev)
		case ev, ok := <-unstaked:
			if !ok {
				return
			}
			d.handleUnstakedEvent(ctx, ev)
		case ev, ok := <-claims:
			if !ok {
				return
			}
			d.handleClaimEvent(ctx, ev)
		}
	}
}

func (d *Daemon) handleStakedEvent(ev *contracts.TokenStakedEvent) {
	d.collector.RecordLedgerEvent(contracts.EventTokenStaked)
	if d.matchesCurrent(ev.IncentiveID.Hex()) {
		d.sync.ApplyStaked(ev.TokenID, nil)
	}
}

func (d *Daemon) handleUnstakedEvent(ctx context.Context, ev *contracts.TokenUnstakedEvent) {
	d.collector.RecordLedgerEvent(contracts.EventTokenUnstaked)
	if d.matchesCurrent(ev.IncentiveID.Hex()) {
		d.sync.ApplyUnstaked(ev.TokenID)
		if err := d.estimator.Refresh(ctx); err != nil {
			logging.Warn("reward refresh failed", logging.Err(err))
		}
	}
}

func (d *Daemon) handleClaimEvent(ctx context.Context, ev *contracts.RewardClaimedEvent) {
	d.collector.RecordLedgerEvent(contracts.EventRewardClaimed)
	if ev.To == d.gateway.Account() {
		if err := d.estimator.Refresh(ctx); err != nil {
			logging.Warn("reward refresh failed", logging.Err(err))
		}
	}
}

// matchesCurrent reports whether an event's incentive id belongs to the
// currently selected incentive. Configured ids are checked against the
// keccak-derived id at load, so a single comparison is exact.
func (d *Daemon) matchesCurrent(incentiveID string) bool {
	current, ok := d.directory.Current()
	if !ok {
		return false
	}
	return strings.EqualFold(current.ID, incentiveID)
}

func (d *Daemon) onNotification(n txflow.Notification) {
	txflow.LogNotifier{}.Notify(n)
	d.hub.broadcast(streamMessage{Type: "notification", Data: n})
}

func (d *Daemon) onPositionsChange() {
	list := d.sync.Positions()
	stakedCount := 0
	for _, p := range list {
		if p.Staked {
			stakedCount++
		}
	}
	d.collector.SetPositions(len(list), stakedCount)
	d.hub.broadcast(streamMessage{Type: "positions", Data: list})
}

func (d *Daemon) onRewardsChange() {
	if amount, ok := d.estimator.Claimable(); ok {
		f, _ := new(big.Float).SetInt(amount).Float64()
		d.collector.SetClaimable(f)
		d.hub.broadcast(streamMessage{Type: "rewards", Data: map[string]string{"claimable": amount.String()}})
	}
}

func (d *Daemon) startHTTP() error {
	d.httpServer = &http.Server{
		Addr:              d.cfg.Daemon.ListenAddr,
		Handler:           d.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	d.wg.Add(1)
	util.SafeGoWithName("http-server", func() {
		defer d.wg.Done()
		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("api server failed", logging.Err(err))
		}
	})

	if d.cfg.Daemon.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.collector.Handler())
		d.metricsServer = &http.Server{
			Addr:              d.cfg.Daemon.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		d.wg.Add(1)
		util.SafeGoWithName("metrics-server", func() {
			defer d.wg.Done()
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("metrics server failed", logging.Err(err))
			}
		})
	}
	return nil
}

// incentiveView is the API shape of the directory state.
func (d *Daemon) incentiveView() map[string]interface{} {
	view := map[string]interface{}{
		"incentives": d.directory.List(),
	}
	if current, ok := d.directory.Current(); ok {
		view["current"] = current.ID
	}
	return view
}
