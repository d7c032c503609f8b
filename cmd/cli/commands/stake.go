package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stakemate/stakemate/pkg/types"
)

// NewStakeCmd creates the stake command.
func NewStakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stake [token-id]",
		Short: "Stake a position into the current incentive",
		Long: `Run the stake sequence for a position NFT.

The sequence depends on where the token currently sits:
  1. approve   - approve the staking contract for the token
  2. transfer  - transfer the token into staking custody
  3. stake     - stake the deposit into the current incentive

Each step is derived from on-chain state, so an interrupted sequence
resumes where it left off.`,
		Args: cobra.ExactArgs(1),
		RunE: runStake,
	}
}

func runStake(cmd *cobra.Command, args []string) error {
	tokenID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token id %q", args[0])
	}
	c := GetClientOrDie()

	// The sequence has at most three steps; re-derive after each one.
	for i := 0; i < 3; i++ {
		step, err := c.StakeStep(tokenID)
		if err != nil {
			return err
		}
		if err := runStakeStep(c, tokenID, step); err != nil {
			return err
		}
		if step == types.StakeStepStake {
			Success(fmt.Sprintf("position %d staked", tokenID))
			return nil
		}
	}
	return fmt.Errorf("stake sequence did not converge for token %d", tokenID)
}

func runStakeStep(c *Client, tokenID uint64, step types.StakeStep) error {
	var title string
	switch step {
	case types.StakeStepApprove:
		title = fmt.Sprintf("Approving staking contract for token %d", tokenID)
	case types.StakeStepTransfer:
		title = fmt.Sprintf("Transferring token %d into staking custody", tokenID)
	case types.StakeStepStake:
		title = fmt.Sprintf("Staking token %d", tokenID)
	default:
		return fmt.Errorf("unknown stake step %q", step)
	}
	return WithSpinner(title, func() error {
		return c.PositionOp(tokenID, string(step))
	})
}
