package incentives

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/stakemate/stakemate/internal/config"
	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/pkg/types"
)

// ErrUnknownIncentive is returned when selecting an incentive id the
// directory does not contain.
var ErrUnknownIncentive = fmt.Errorf("unknown incentive")

// Source lists incentives from an external index.
type Source interface {
	Incentives(ctx context.Context) ([]types.Incentive, error)
}

// Directory holds the known incentives for the bound network, newest
// ending first, and tracks the current selection. The current incentive
// scopes every stake, unstake and reward read until it changes.
type Directory struct {
	mu         sync.RWMutex
	incentives []types.Incentive
	currentID  string

	listenerMu sync.Mutex
	listeners  []func()
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Load rebuilds the directory from the network's static configuration,
// merged with the subgraph index when one is configured. On any failure
// the directory is cleared so no stale entries survive.
func (d *Directory) Load(ctx context.Context, netCfg *config.NetworkConfig) error {
	byID := make(map[string]types.Incentive)
	for _, ic := range netCfg.Incentives {
		inc, err := ic.Incentive()
		if err != nil {
			d.Clear()
			return err
		}
		byID[inc.ID] = inc
	}

	if netCfg.SubgraphURL != "" {
		indexed, err := NewSubgraphClient(netCfg.SubgraphURL).Incentives(ctx)
		if err != nil {
			d.Clear()
			return fmt.Errorf("failed to load incentive index: %w", err)
		}
		// Indexed entries win over static ones with the same id.
		for _, inc := range indexed {
			byID[inc.ID] = inc
		}
	}

	now := big.NewInt(time.Now().Unix())
	list := make([]types.Incentive, 0, len(byID))
	for _, inc := range byID {
		if !inc.Ended && inc.Key.EndTime.Cmp(now) < 0 {
			inc.Ended = true
		}
		list = append(list, inc)
	}
	sort.Slice(list, func(i, j int) bool {
		cmp := list[i].Key.EndTime.Cmp(list[j].Key.EndTime)
		if cmp != 0 {
			return cmp > 0
		}
		return list[i].ID < list[j].ID
	})

	d.mu.Lock()
	d.incentives = list
	if _, ok := d.find(d.currentID); !ok {
		d.currentID = ""
		if len(list) > 0 {
			d.currentID = list[0].ID
		}
	}
	d.mu.Unlock()

	logging.Info("incentive directory loaded", "count", len(list))
	d.notify()
	return nil
}

// Clear empties the directory and the current selection.
func (d *Directory) Clear() {
	d.mu.Lock()
	d.incentives = nil
	d.currentID = ""
	d.mu.Unlock()
	d.notify()
}

// List returns a copy of all incentives, newest ending first.
func (d *Directory) List() []types.Incentive {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.Incentive, len(d.incentives))
	copy(out, d.incentives)
	return out
}

// Current returns the selected incentive, or false when the directory is
// empty.
func (d *Directory) Current() (types.Incentive, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.find(d.currentID)
}

// SetCurrent selects an incentive by id.
func (d *Directory) SetCurrent(id string) error {
	d.mu.Lock()
	if _, ok := d.find(id); !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownIncentive, id)
	}
	changed := d.currentID != id
	d.currentID = id
	d.mu.Unlock()

	if changed {
		d.notify()
	}
	return nil
}

// ByID looks up one incentive.
func (d *Directory) ByID(id string) (types.Incentive, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.find(id)
}

// find requires d.mu held.
func (d *Directory) find(id string) (types.Incentive, bool) {
	if id == "" {
		return types.Incentive{}, false
	}
	for _, inc := range d.incentives {
		if inc.ID == id {
			return inc, true
		}
	}
	return types.Incentive{}, false
}

// OnChange registers a listener invoked after every load, clear or
// selection change.
func (d *Directory) OnChange(fn func()) {
	d.listenerMu.Lock()
	d.listeners = append(d.listeners, fn)
	d.listenerMu.Unlock()
}

func (d *Directory) notify() {
	d.listenerMu.Lock()
	listeners := make([]func(), len(d.listeners))
	copy(listeners, d.listeners)
	d.listenerMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
