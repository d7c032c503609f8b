package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRewardsCmd creates the rewards command.
func NewRewardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Show claimable rewards",
		Long:  "Display the reward balance accrued to the connected account on the staking contract.",
		RunE:  runRewards,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "claim",
		Short: "Claim all accrued rewards",
		Long:  "Transfer the full claimable reward balance from the staking contract to the connected wallet.",
		RunE:  runClaim,
	})
	return cmd
}

func runRewards(cmd *cobra.Command, args []string) error {
	c := GetClientOrDie()

	info, err := c.Rewards()
	if err != nil {
		return fmt.Errorf("failed to get rewards: %w", err)
	}
	if !info.Ready {
		Warning("reward data not synced yet")
		fmt.Println(Hint("connect a wallet and select an incentive, or run: stakemate reload"))
		return nil
	}

	fields := [][2]string{
		{"Claimable", FormatRewardString(info.Claimable)},
		{"Base units", info.Claimable},
	}
	if info.Token != nil {
		fields = append(fields,
			[2]string{"Token", fmt.Sprintf("%s (%s)", info.Token.Symbol, FormatAddress(info.Token.Address))},
			[2]string{"In wallet", FormatRewardString(info.Token.Balance)},
		)
	}
	fmt.Println(StatusBox("Rewards", fields))

	if info.Claimable != "0" {
		fmt.Println(Hint("claim with: stakemate rewards claim"))
	}
	return nil
}

func runClaim(cmd *cobra.Command, args []string) error {
	c := GetClientOrDie()

	if err := WithSpinner("Claiming rewards", func() error {
		return c.Claim()
	}); err != nil {
		return err
	}
	Success("rewards claimed")
	return nil
}
