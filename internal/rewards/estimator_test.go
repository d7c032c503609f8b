package rewards

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

func currentKey() types.IncentiveKey {
	return types.IncentiveKey{
		RewardToken: rewardToken,
		Pool:        common.HexToAddress("0x4444444444444444444444444444444444444444"),
		StartTime:   big.NewInt(1_600_000_000),
		EndTime:     big.NewInt(9_900_000_000),
		Refundee:    testAccount,
	}
}

func newTestEstimator(t *testing.T) (*Estimator, *contracts.StakingLedger, *incentives.Directory) {
	t.Helper()

	session := wallet.NewSession(filepath.Join(t.TempDir(), "wallet.json"))
	ledger := contracts.NewMockStakingLedger()
	gateway := contracts.NewMockGateway(session, testNetConfig(),
		contracts.NewMockPositionRegistry(), ledger)
	directory := incentives.NewDirectory()
	e := NewEstimator(gateway, directory)

	if err := session.ConnectReadOnly(types.NetworkRinkeby, testAccount.Hex()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := directory.Load(context.Background(), testNetConfig()); err != nil {
		t.Fatalf("load directory: %v", err)
	}
	return e, ledger, directory
}

func TestClaimableNotReadyBeforeRefresh(t *testing.T) {
	e, _, _ := newTestEstimator(t)
	if _, ok := e.Claimable(); ok {
		t.Error("expected not ready before refresh")
	}
}

func TestRefreshPublishesClaimable(t *testing.T) {
	e, ledger, _ := newTestEstimator(t)
	ledger.SetMockClaimable(rewardToken, testAccount, big.NewInt(123))

	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	amount, ok := e.Claimable()
	if !ok {
		t.Fatal("expected ready after refresh")
	}
	if amount.Int64() != 123 {
		t.Errorf("expected 123, got %s", amount)
	}
}

func TestIncentiveChangeInvalidates(t *testing.T) {
	e, ledger, directory := newTestEstimator(t)
	ledger.SetMockClaimable(rewardToken, testAccount, big.NewInt(123))
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	directory.Clear()

	if _, ok := e.Claimable(); ok {
		t.Error("incentive change must invalidate the balance")
	}
	if err := e.Refresh(context.Background()); err == nil {
		t.Error("expected error refreshing without incentive")
	}
}

func TestPositionReward(t *testing.T) {
	e, ledger, _ := newTestEstimator(t)
	ledger.SetMockDeposit(9, testAccount, 1)
	if err := ledger.SetMockStake(currentKey(), 9, big.NewInt(55)); err != nil {
		t.Fatalf("seed stake: %v", err)
	}

	result, err := e.PositionReward(context.Background(), 9)
	if err != nil {
		t.Fatalf("position reward: %v", err)
	}
	if !result.Staked || result.Amount.Int64() != 55 {
		t.Errorf("unexpected result: %+v", result)
	}

	// An unstaked token maps the ledger's revert to a normal result.
	result, err = e.PositionReward(context.Background(), 10)
	if err != nil {
		t.Fatalf("position reward: %v", err)
	}
	if result.Staked || result.Amount.Sign() != 0 {
		t.Errorf("expected unstaked result, got %+v", result)
	}
}
