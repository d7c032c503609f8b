package txflow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/stakemate/stakemate/internal/contracts"
	"github.com/stakemate/stakemate/internal/incentives"
	"github.com/stakemate/stakemate/internal/positions"
	"github.com/stakemate/stakemate/internal/rewards"
	"github.com/stakemate/stakemate/pkg/types"
)

// Flows drives the multi-step mutation sequences against the contracts:
// approve/transfer/stake to enter an incentive, unstake/withdraw to
// leave it, and reward claims. Each step derives its precondition from
// chain state rather than client memory, so an interrupted sequence
// resumes at the right step. Published state is only updated after
// confirmation, never optimistically.
type Flows struct {
	gateway   *contracts.Gateway
	directory *incentives.Directory
	sync      *positions.Synchronizer
	estimator *rewards.Estimator
	notifier  Notifier
}

// NewFlows wires the mutation flows.
func NewFlows(gateway *contracts.Gateway, directory *incentives.Directory, sync *positions.Synchronizer, estimator *rewards.Estimator, notifier Notifier) *Flows {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Flows{
		gateway:   gateway,
		directory: directory,
		sync:      sync,
		estimator: estimator,
		notifier:  notifier,
	}
}

// NextStakeStep derives the next pending step of the stake sequence for
// a token from its custody and approval state.
func (f *Flows) NextStakeStep(ctx context.Context, tokenID uint64) (types.StakeStep, error) {
	registry, err := f.gateway.Registry()
	if err != nil {
		return "", err
	}
	ledger, err := f.gateway.Ledger()
	if err != nil {
		return "", err
	}

	owner, err := registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if owner == ledger.Address() {
		return types.StakeStepStake, nil
	}

	approved, err := registry.GetApproved(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if approved == ledger.Address() {
		return types.StakeStepTransfer, nil
	}
	return types.StakeStepApprove, nil
}

// NextWithdrawStep derives the next pending step of the withdraw
// sequence from the deposit record's stake counter.
func (f *Flows) NextWithdrawStep(ctx context.Context, tokenID uint64) (types.WithdrawStep, error) {
	ledger, err := f.gateway.Ledger()
	if err != nil {
		return "", err
	}
	deposit, err := ledger.Deposits(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if deposit.NumberOfStakes == 0 {
		return types.WithdrawStepWithdraw, nil
	}
	return types.WithdrawStepUnstake, nil
}

// Approve approves the staking ledger as spender of one token.
func (f *Flows) Approve(ctx context.Context, tokenID uint64) error {
	registry, err := f.gateway.Registry()
	if err != nil {
		return err
	}
	ledger, err := f.gateway.Ledger()
	if err != nil {
		return err
	}
	return f.run(ctx, "approve", tokenID, func(ctx context.Context) (*ethtypes.Transaction, error) {
		return registry.Approve(ctx, ledger.Address(), tokenID)
	}, nil)
}

// Transfer moves custody of one token to the staking ledger, creating a
// deposit on the ledger side.
func (f *Flows) Transfer(ctx context.Context, tokenID uint64) error {
	registry, err := f.gateway.Registry()
	if err != nil {
		return err
	}
	ledger, err := f.gateway.Ledger()
	if err != nil {
		return err
	}
	account := f.gateway.Account()
	return f.run(ctx, "transfer", tokenID, func(ctx context.Context) (*ethtypes.Transaction, error) {
		return registry.SafeTransferFrom(ctx, account, ledger.Address(), tokenID)
	}, nil)
}

// Stake stakes a deposited token into the current incentive.
func (f *Flows) Stake(ctx context.Context, tokenID uint64) error {
	ledger, err := f.gateway.Ledger()
	if err != nil {
		return err
	}
	current, ok := f.directory.Current()
	if !ok {
		return fmt.Errorf("no incentive selected")
	}
	if current.Ended {
		return fmt.Errorf("incentive %s has ended", current.ID)
	}
	return f.run(ctx, "stake", tokenID, func(ctx context.Context) (*ethtypes.Transaction, error) {
		return ledger.StakeToken(ctx, current.Key, tokenID)
	}, func(ctx context.Context) {
		f.sync.ApplyStaked(tokenID, nil)
	})
}

// Unstake removes a token from the current incentive, moving its
// accrued reward into the claimable balance.
func (f *Flows) Unstake(ctx context.Context, tokenID uint64) error {
	ledger, err := f.gateway.Ledger()
	if err != nil {
		return err
	}
	current, ok := f.directory.Current()
	if !ok {
		return fmt.Errorf("no incentive selected")
	}
	return f.run(ctx, "unstake", tokenID, func(ctx context.Context) (*ethtypes.Transaction, error) {
		return ledger.UnstakeToken(ctx, current.Key, tokenID)
	}, func(ctx context.Context) {
		f.sync.ApplyUnstaked(tokenID)
		_ = f.estimator.Refresh(ctx)
	})
}

// Withdraw returns custody of a fully unstaked token to the account.
// The collection is rebuilt afterwards since custody moved.
func (f *Flows) Withdraw(ctx context.Context, tokenID uint64) error {
	ledger, err := f.gateway.Ledger()
	if err != nil {
		return err
	}
	account := f.gateway.Account()
	return f.run(ctx, "withdraw", tokenID, func(ctx context.Context) (*ethtypes.Transaction, error) {
		return ledger.WithdrawToken(ctx, tokenID, account)
	}, func(ctx context.Context) {
		_ = f.sync.Reload(ctx)
	})
}

// Claim transfers the full claimable balance of the current incentive's
// reward token to the account.
func (f *Flows) Claim(ctx context.Context) error {
	ledger, err := f.gateway.Ledger()
	if err != nil {
		return err
	}
	current, ok := f.directory.Current()
	if !ok {
		return fmt.Errorf("no incentive selected")
	}
	account := f.gateway.Account()
	if account == (common.Address{}) {
		return fmt.Errorf("no account connected")
	}
	return f.run(ctx, "claim", 0, func(ctx context.Context) (*ethtypes.Transaction, error) {
		// Zero amount claims the full balance.
		return ledger.ClaimReward(ctx, current.Key.RewardToken, account, big.NewInt(0))
	}, func(ctx context.Context) {
		_ = f.estimator.Refresh(ctx)
	})
}

// run submits one transaction, waits for confirmation and applies the
// post-confirmation state update. A nil transaction (mock mode) counts
// as immediately confirmed.
func (f *Flows) run(ctx context.Context, op string, tokenID uint64, send func(ctx context.Context) (*ethtypes.Transaction, error), onSuccess func(ctx context.Context)) error {
	tx, err := send(ctx)
	if err != nil {
		f.notifier.Notify(Notification{Op: op, TokenID: tokenID, Status: StatusFailed, Error: err.Error()})
		return err
	}

	var txHash string
	if tx != nil {
		txHash = tx.Hash().Hex()
	}
	f.notifier.Notify(Notification{Op: op, TokenID: tokenID, TxHash: txHash, Status: StatusPending})

	if tx != nil {
		client := f.gateway.Client()
		if client == nil {
			err := fmt.Errorf("no chain client to await confirmation")
			f.notifier.Notify(Notification{Op: op, TokenID: tokenID, TxHash: txHash, Status: StatusFailed, Error: err.Error()})
			return err
		}
		if _, err := client.WaitForTransaction(ctx, tx); err != nil {
			f.notifier.Notify(Notification{Op: op, TokenID: tokenID, TxHash: txHash, Status: StatusFailed, Error: err.Error()})
			return err
		}
	}

	f.notifier.Notify(Notification{Op: op, TokenID: tokenID, TxHash: txHash, Status: StatusConfirmed})
	if onSuccess != nil {
		onSuccess(ctx)
	}
	return nil
}
