package txflow

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stakemate/stakemate/internal/config"
	"github.com/stakemate/stakemate/internal/contracts"
	"github.com/stakemate/stakemate/internal/incentives"
	"github.com/stakemate/stakemate/internal/positions"
	"github.com/stakemate/stakemate/internal/rewards"
	"github.com/stakemate/stakemate/internal/wallet"
	"github.com/stakemate/stakemate/pkg/types"
)

var (
	testAccount = common.HexToAddress("0x1111111111111111111111111111111111111111")
	ledgerAddr  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	rewardToken = common.HexToAddress("0x3333333333333333333333333333333333333333")
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
		}},
	}
}

type testEnv struct {
	flows         *Flows
	registry      *contracts.PositionRegistry
	ledger        *contracts.StakingLedger
	sync          *positions.Synchronizer
	estimator     *rewards.Estimator
	directory     *incentives.Directory
	notifications []Notification
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	session := wallet.NewSession(filepath.Join(t.TempDir(), "wallet.json"))
	registry := contracts.NewMockPositionRegistry()
	ledger := contracts.NewMockStakingLedger()
	ledger.SetMockAddress(ledgerAddr)
	gateway := contracts.NewMockGateway(session, testNetConfig(), registry, ledger)
	directory := incentives.NewDirectory()
	sync := positions.NewSynchronizer(gateway, directory)
	estimator := rewards.NewEstimator(gateway, directory)

	env := &testEnv{registry: registry, ledger: ledger, sync: sync, estimator: estimator, directory: directory}
	env.flows = NewFlows(gateway, directory, sync, estimator, NotifierFunc(func(n Notification) {
		env.notifications = append(env.notifications, n)
	}))

	if err := session.ConnectReadOnly(types.NetworkRinkeby, testAccount.Hex()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := directory.Load(context.Background(), testNetConfig()); err != nil {
		t.Fatalf("load directory: %v", err)
	}
	return env
}

func (env *testEnv) lastStatus() Status {
	if len(env.notifications) == 0 {
		return ""
	}
	return env.notifications[len(env.notifications)-1].Status
}

func TestNextStakeStepDerivation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registry.SetMockToken(10, testAccount, big.NewInt(100))

	step, err := env.flows.NextStakeStep(ctx, 10)
	if err != nil {
		t.Fatalf("next step: %v", err)
	}
	if step != types.StakeStepApprove {
		t.Errorf("expected approve, got %s", step)
	}

	if err := env.flows.Approve(ctx, 10); err != nil {
		t.Fatalf("approve: %v", err)
	}
	step, _ = env.flows.NextStakeStep(ctx, 10)
	if step != types.StakeStepTransfer {
		t.Errorf("expected transfer after approval, got %s", step)
	}

	if err := env.flows.Transfer(ctx, 10); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	step, _ = env.flows.NextStakeStep(ctx, 10)
	if step != types.StakeStepStake {
		t.Errorf("expected stake after transfer, got %s", step)
	}
}

func TestStakePatchesPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registry.SetMockToken(10, ledgerAddr, big.NewInt(100))
	env.ledger.SetMockDeposit(10, testAccount, 0)
	if err := env.sync.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := env.flows.Stake(ctx, 10); err != nil {
		t.Fatalf("stake: %v", err)
	}

	list := env.sync.Positions()
	if len(list) != 1 || !list[0].Staked {
		t.Errorf("expected staked position after confirmation, got %+v", list)
	}
	if env.lastStatus() != StatusConfirmed {
		t.Errorf("expected confirmed notification, got %s", env.lastStatus())
	}
}

func TestStakeRejectsEndedIncentive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	netCfg := testNetConfig()
	netCfg.Incentives[0].Ended = true
	if err := env.directory.Load(ctx, netCfg); err != nil {
		t.Fatalf("load directory: %v", err)
	}

	env.registry.SetMockToken(10, ledgerAddr, big.NewInt(100))
	env.ledger.SetMockDeposit(10, testAccount, 0)

	if err := env.flows.Stake(ctx, 10); err == nil {
		t.Error("expected error staking into ended incentive")
	}
}

func TestWithdrawSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registry.SetMockToken(10, ledgerAddr, big.NewInt(100))
	env.ledger.SetMockDeposit(10, testAccount, 0)
	if err := env.sync.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := env.flows.Stake(ctx, 10); err != nil {
		t.Fatalf("stake: %v", err)
	}

	step, err := env.flows.NextWithdrawStep(ctx, 10)
	if err != nil {
		t.Fatalf("next withdraw step: %v", err)
	}
	if step != types.WithdrawStepUnstake {
		t.Errorf("expected unstake while staked, got %s", step)
	}

	if err := env.flows.Unstake(ctx, 10); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	step, _ = env.flows.NextWithdrawStep(ctx, 10)
	if step != types.WithdrawStepWithdraw {
		t.Errorf("expected withdraw after unstake, got %s", step)
	}

	// Withdraw returns custody and rebuilds the collection.
	if err := env.flows.Withdraw(ctx, 10); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	list := env.sync.Positions()
	if len(list) != 0 {
		t.Errorf("expected empty collection after withdraw of ledger-held token, got %+v", list)
	}
}

func TestUnstakeRefreshesClaimable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registry.SetMockToken(10, ledgerAddr, big.NewInt(100))
	env.ledger.SetMockDeposit(10, testAccount, 0)
	if err := env.flows.Stake(ctx, 10); err != nil {
		t.Fatalf("stake: %v", err)
	}

	if err := env.flows.Unstake(ctx, 10); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	if _, ok := env.estimator.Claimable(); !ok {
		t.Error("expected claimable balance refreshed after unstake")
	}
}

func TestClaimZeroesClaimable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.ledger.SetMockClaimable(rewardToken, testAccount, big.NewInt(500))
	if err := env.estimator.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := env.flows.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	amount, ok := env.estimator.Claimable()
	if !ok {
		t.Fatal("expected claimable refreshed after claim")
	}
	if amount.Sign() != 0 {
		t.Errorf("expected zero claimable after claim, got %s", amount)
	}
}

func TestFailedSendNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Token was never deposited, staking must fail.
	if err := env.flows.Stake(ctx, 99); err == nil {
		t.Fatal("expected stake error")
	}
	if env.lastStatus() != StatusFailed {
		t.Errorf("expected failed notification, got %s", env.lastStatus())
	}
}
