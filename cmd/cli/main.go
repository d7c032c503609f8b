package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stakemate/stakemate/cmd/cli/commands"
)

var rootCmd = &cobra.Command{
	Use:   "stakemate",
	Short: "Stakemate liquidity staking client",
	Long:  "Stake liquidity position NFTs into incentive programs and track rewards from the command line",
}

func init() {
	// Add global persistent flags
	rootCmd.PersistentFlags().StringVar(&commands.APIEndpoint, "api", "", "Daemon API endpoint (default: http://127.0.0.1:7810)")
}

func main() {
	// Register commands
	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewConnectCmd())
	rootCmd.AddCommand(commands.NewDisconnectCmd())
	rootCmd.AddCommand(commands.NewPositionsCmd())
	rootCmd.AddCommand(commands.NewIncentivesCmd())
	rootCmd.AddCommand(commands.NewStakeCmd())
	rootCmd.AddCommand(commands.NewUnstakeCmd())
	rootCmd.AddCommand(commands.NewWithdrawCmd())
	rootCmd.AddCommand(commands.NewRewardsCmd())
	rootCmd.AddCommand(commands.NewReloadCmd())
	rootCmd.AddCommand(commands.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
