package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stakemate/stakemate/pkg/types"
)

// NewWithdrawCmd creates the withdraw command.
func NewWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw [token-id]",
		Short: "Withdraw a position back to the wallet",
		Long: `Run the withdraw sequence for a position NFT held in staking custody.

An actively staked token is unstaked first, then the deposit is
withdrawn back to the connected wallet.`,
		Args: cobra.ExactArgs(1),
		RunE: runWithdraw,
	}
}

func runWithdraw(cmd *cobra.Command, args []string) error {
	tokenID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token id %q", args[0])
	}
	c := GetClientOrDie()

	for i := 0; i < 2; i++ {
		step, err := c.WithdrawStep(tokenID)
		if err != nil {
			return err
		}

		var title string
		switch step {
		case types.WithdrawStepUnstake:
			title = fmt.Sprintf("Unstaking token %d", tokenID)
		case types.WithdrawStepWithdraw:
			title = fmt.Sprintf("Withdrawing token %d to wallet", tokenID)
		default:
			return fmt.Errorf("unknown withdraw step %q", step)
		}
		if err := WithSpinner(title, func() error {
			return c.PositionOp(tokenID, string(step))
		}); err != nil {
			return err
		}
		if step == types.WithdrawStepWithdraw {
			Success(fmt.Sprintf("position %d withdrawn to wallet", tokenID))
			return nil
		}
	}
	return fmt.Errorf("withdraw sequence did not converge for token %d", tokenID)
}
