package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewUnstakeCmd creates the unstake command.
func NewUnstakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unstake [token-id]",
		Short: "Unstake a position from the current incentive",
		Long:  "End the position's stake in the current incentive. Accrued rewards become claimable; the token stays in staking custody until withdrawn.",
		Args:  cobra.ExactArgs(1),
		RunE:  runUnstake,
	}
}

func runUnstake(cmd *cobra.Command, args []string) error {
	tokenID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token id %q", args[0])
	}
	c := GetClientOrDie()

	if err := WithSpinner(fmt.Sprintf("Unstaking token %d", tokenID), func() error {
		return c.PositionOp(tokenID, "unstake")
	}); err != nil {
		return err
	}

	Success(fmt.Sprintf("position %d unstaked", tokenID))
	if rewards, err := c.Rewards(); err == nil && rewards.Ready {
		fmt.Println(Hint(fmt.Sprintf("claimable rewards: %s (claim with: stakemate rewards claim)", FormatRewardString(rewards.Claimable))))
	}
	return nil
}
