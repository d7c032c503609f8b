package positions

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stakemate/stakemate/internal/config"
	"github.com/stakemate/stakemate/internal/contracts"
	"github.com/stakemate/stakemate/internal/incentives"
	"github.com/stakemate/stakemate/internal/wallet"
	"github.com/stakemate/stakemate/pkg/types"
)

var (
	testAccount = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOther   = common.HexToAddress("0x5555555555555555555555555555555555555555")
	ledgerAddr  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func testNetConfig() *config.NetworkConfig {
	return &config.NetworkConfig{
		ChainID: 4,
		Incentives: []config.IncentiveConfig{{
			ID:          "0xabc",
			RewardToken: "0x3333333333333333333333333333333333333333",
			Pool:        "0x4444444444444444444444444444444444444444",
			StartTime:   1_600_000_000,
			EndTime:     9_900_000_000,
			Refundee:    "0x1111111111111111111111111111111111111111",
			Reward:      "1000000",
		}},
	}
}

func currentKey() types.IncentiveKey {
	return types.IncentiveKey{
		RewardToken: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Pool:        common.HexToAddress("0x4444444444444444444444444444444444444444"),
		StartTime:   big.NewInt(1_600_000_000),
		EndTime:     big.NewInt(9_900_000_000),
		Refundee:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
	}
}

type testEnv struct {
	sync      *Synchronizer
	registry  *contracts.PositionRegistry
	ledger    *contracts.StakingLedger
	session   *wallet.Session
	directory *incentives.Directory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	session := wallet.NewSession(filepath.Join(t.TempDir(), "wallet.json"))
	registry := contracts.NewMockPositionRegistry()
	ledger := contracts.NewMockStakingLedger()
	ledger.SetMockAddress(ledgerAddr)

	gateway := contracts.NewMockGateway(session, testNetConfig(), registry, ledger)
	directory := incentives.NewDirectory()
	sync := NewSynchronizer(gateway, directory)

	if err := session.ConnectReadOnly(types.NetworkRinkeby, testAccount.Hex()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := directory.Load(context.Background(), testNetConfig()); err != nil {
		t.Fatalf("load directory: %v", err)
	}

	return &testEnv{sync: sync, registry: registry, ledger: ledger, session: session, directory: directory}
}

func TestReloadCollectsBothCustodians(t *testing.T) {
	env := newTestEnv(t)

	// Wallet-held token, not staked.
	env.registry.SetMockToken(10, testAccount, big.NewInt(100))
	// Ledger-held token deposited by the account, staked with a reward.
	env.registry.SetMockToken(20, ledgerAddr, big.NewInt(100))
	env.ledger.SetMockDeposit(20, testAccount, 1)
	if err := env.ledger.SetMockStake(currentKey(), 20, big.NewInt(777)); err != nil {
		t.Fatalf("seed stake: %v", err)
	}

	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !env.sync.Ready() {
		t.Fatal("expected ready after reload")
	}

	list := env.sync.Positions()
	if len(list) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(list))
	}

	if list[0].TokenID != 10 || list[0].Staked {
		t.Errorf("unexpected wallet-held position: %+v", list[0])
	}
	if list[1].TokenID != 20 || !list[1].Staked {
		t.Errorf("unexpected ledger-held position: %+v", list[1])
	}
	if list[1].Reward.Int64() != 777 {
		t.Errorf("expected reward 777, got %s", list[1].Reward)
	}
	for _, pos := range list {
		if pos.Owner != testAccount {
			t.Errorf("token %d: owner must be the account, got %s", pos.TokenID, pos.Owner.Hex())
		}
	}
}

func TestReloadFiltersZeroLiquidity(t *testing.T) {
	env := newTestEnv(t)
	env.registry.SetMockToken(10, testAccount, big.NewInt(100))
	env.registry.SetMockToken(11, testAccount, big.NewInt(0))

	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	list := env.sync.Positions()
	if len(list) != 1 || list[0].TokenID != 10 {
		t.Errorf("expected only token 10, got %+v", list)
	}
}

func TestReloadFiltersForeignDeposits(t *testing.T) {
	env := newTestEnv(t)
	// Ledger-held token deposited by someone else.
	env.registry.SetMockToken(30, ledgerAddr, big.NewInt(100))
	env.ledger.SetMockDeposit(30, testOther, 1)

	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(env.sync.Positions()) != 0 {
		t.Error("foreign deposit must be filtered out")
	}
}

func TestReloadSortsByTokenID(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []uint64{42, 7, 19} {
		env.registry.SetMockToken(id, testAccount, big.NewInt(1))
	}

	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	list := env.sync.Positions()
	for i := 1; i < len(list); i++ {
		if list[i-1].TokenID >= list[i].TokenID {
			t.Fatalf("positions not sorted: %+v", list)
		}
	}
}

func TestReloadWithoutIncentiveClears(t *testing.T) {
	env := newTestEnv(t)
	env.registry.SetMockToken(10, testAccount, big.NewInt(100))
	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	env.directory.Clear()
	if err := env.sync.Reload(context.Background()); err == nil {
		t.Fatal("expected error without incentive")
	}
	if env.sync.Ready() {
		t.Error("expected not ready after failed reload")
	}
	if len(env.sync.Positions()) != 0 {
		t.Error("failed reload must clear the collection")
	}
}

func TestSessionChangeInvalidates(t *testing.T) {
	env := newTestEnv(t)
	env.registry.SetMockToken(10, testAccount, big.NewInt(100))
	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	env.session.Disconnect()

	if env.sync.Ready() {
		t.Error("session change must invalidate the collection")
	}
	if len(env.sync.Positions()) != 0 {
		t.Error("session change must clear published positions")
	}
}

func TestApplyStakedPatchesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.registry.SetMockToken(10, testAccount, big.NewInt(100))
	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	changes := 0
	env.sync.OnChange(func() { changes++ })

	env.sync.ApplyStaked(10, big.NewInt(5))
	env.sync.ApplyStaked(10, big.NewInt(5)) // replayed event

	list := env.sync.Positions()
	if !list[0].Staked || list[0].Reward.Int64() != 5 {
		t.Errorf("unexpected patched position: %+v", list[0])
	}
	if changes != 1 {
		t.Errorf("replayed patch must not notify, got %d notifications", changes)
	}

	// Events for tokens outside the collection are ignored.
	env.sync.ApplyStaked(999, nil)
	if len(env.sync.Positions()) != 1 {
		t.Error("unknown token must not enter the collection")
	}
}

func TestApplyUnstakedZeroesReward(t *testing.T) {
	env := newTestEnv(t)
	env.registry.SetMockToken(20, ledgerAddr, big.NewInt(100))
	env.ledger.SetMockDeposit(20, testAccount, 1)
	if err := env.ledger.SetMockStake(currentKey(), 20, big.NewInt(777)); err != nil {
		t.Fatalf("seed stake: %v", err)
	}
	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	env.sync.ApplyUnstaked(20)
	env.sync.ApplyUnstaked(20) // replayed event

	list := env.sync.Positions()
	if list[0].Staked {
		t.Error("expected unstaked after patch")
	}
	if list[0].Reward.Sign() != 0 {
		t.Errorf("expected zero reward after unstake, got %s", list[0].Reward)
	}
}

func TestRemove(t *testing.T) {
	env := newTestEnv(t)
	env.registry.SetMockToken(10, testAccount, big.NewInt(100))
	env.registry.SetMockToken(11, testAccount, big.NewInt(100))
	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	env.sync.Remove(10)

	list := env.sync.Positions()
	if len(list) != 1 || list[0].TokenID != 11 {
		t.Errorf("unexpected collection after remove: %+v", list)
	}
}

func TestSupersededReloadDiscarded(t *testing.T) {
	env := newTestEnv(t)
	env.registry.SetMockToken(10, testAccount, big.NewInt(100))

	gen := env.sync.generation.Load()

	// A session or incentive change lands while a reload started under
	// gen is still in flight.
	env.sync.invalidate()

	if env.sync.publish(gen, []types.Position{{TokenID: 10, Owner: testAccount}}) {
		t.Error("superseded reload must not publish")
	}
	if env.sync.Ready() {
		t.Error("collection must stay not ready")
	}
	if len(env.sync.Positions()) != 0 {
		t.Error("superseded result must be discarded")
	}

	// A reload under the new generation publishes normally.
	if err := env.sync.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !env.sync.Ready() {
		t.Error("fresh reload must publish")
	}
}
