package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the daemon status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and session status",
		Long:  "Display the daemon connection state, the bound network and account, and the selected incentive program.",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	c := GetClient()
	status, err := c.Status()
	if err != nil {
		return fmt.Errorf("cannot reach daemon at %s: %w", GetAPIEndpoint(), err)
	}

	fields := [][2]string{
		{"Daemon", GetAPIEndpoint()},
	}
	if status.Connected {
		mode := "read-only"
		if status.Signer {
			mode = "keystore"
		}
		fields = append(fields,
			[2]string{"Session", StatusBadge("connected")},
			[2]string{"Network", status.Network},
			[2]string{"Address", FormatAddress(status.Address)},
			[2]string{"Mode", mode},
		)
	} else {
		fields = append(fields, [2]string{"Session", StatusBadge("disconnected")})
	}
	if status.Incentive != "" {
		fields = append(fields, [2]string{"Incentive", FormatIncentiveID(status.Incentive)})
	}
	readyState := "syncing"
	if status.Ready {
		readyState = "ok"
	}
	fields = append(fields, [2]string{"Sync", StatusBadge(readyState)})

	fmt.Println(StatusBox(Logo()+" Status", fields))

	if !status.Connected {
		fmt.Println(Hint("connect a wallet with: stakemate connect"))
	}
	return nil
}
