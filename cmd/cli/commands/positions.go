package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPositionsCmd creates the positions listing command.
func NewPositionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "List liquidity positions",
		Long:  "List the connected account's liquidity position NFTs, including tokens held in custody by the staking contract.",
		RunE:  runPositions,
	}
}

func runPositions(cmd *cobra.Command, args []string) error {
	c := GetClientOrDie()

	list, err := c.Positions()
	if err != nil {
		return fmt.Errorf("failed to list positions: %w", err)
	}
	if !list.Ready {
		Warning("position data not synced yet")
		fmt.Println(Hint("connect a wallet and select an incentive, or run: stakemate reload"))
		return nil
	}
	if len(list.Positions) == 0 {
		Info("no positions found for the connected account")
		return nil
	}

	rows := make([][]string, 0, len(list.Positions))
	for _, p := range list.Positions {
		state := "unstaked"
		reward := "-"
		if p.Staked {
			state = "staked"
			reward = FormatReward(p.Reward)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", p.TokenID),
			StatusBadge(state),
			reward,
		})
	}

	fmt.Println(RenderTable([]string{"TOKEN", "STATE", "REWARD"}, rows))
	return nil
}
