package commands

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/stakemate/stakemate/pkg/types"
)

// NewIncentivesCmd creates the incentive directory command.
func NewIncentivesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incentives",
		Short: "List and select incentive programs",
		Long:  "List the known incentive programs for the bound network and select the one positions are staked into.",
		RunE:  runIncentivesList,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "select [incentive-id]",
		Short: "Select the current incentive program",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIncentivesSelect,
	})
	return cmd
}

func runIncentivesList(cmd *cobra.Command, args []string) error {
	c := GetClientOrDie()

	list, err := c.Incentives()
	if err != nil {
		return fmt.Errorf("failed to list incentives: %w", err)
	}
	if len(list.Incentives) == 0 {
		Info("no incentives known; check network config and subgraph endpoint")
		return nil
	}

	rows := make([][]string, 0, len(list.Incentives))
	for _, inc := range list.Incentives {
		rows = append(rows, []string{
			selectionMark(inc.ID == list.Current),
			FormatIncentiveID(inc.ID),
			formatUnix(inc.Key.StartTime.Int64()),
			formatUnix(inc.Key.EndTime.Int64()),
			incentiveState(inc),
		})
	}

	fmt.Println(RenderTable([]string{"", "INCENTIVE", "START", "END", "STATE"}, rows))
	return nil
}

func runIncentivesSelect(cmd *cobra.Command, args []string) error {
	c := GetClientOrDie()

	var id string
	if len(args) == 1 {
		id = args[0]
	} else {
		list, err := c.Incentives()
		if err != nil {
			return fmt.Errorf("failed to list incentives: %w", err)
		}
		if len(list.Incentives) == 0 {
			return fmt.Errorf("no incentives available")
		}

		options := make([]huh.Option[string], 0, len(list.Incentives))
		for _, inc := range list.Incentives {
			label := fmt.Sprintf("%s  (ends %s)", FormatIncentiveID(inc.ID), formatUnix(inc.Key.EndTime.Int64()))
			if inc.Ended {
				label += "  [ended]"
			}
			options = append(options, huh.NewOption(label, inc.ID))
		}
		err = huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select incentive program").
				Options(options...).
				Value(&id),
		)).Run()
		if err != nil {
			return err
		}
	}

	if err := WithSpinner("Switching incentive and reloading positions", func() error {
		return c.SetIncentive(id)
	}); err != nil {
		return err
	}
	Success(fmt.Sprintf("selected incentive %s", FormatIncentiveID(id)))
	return nil
}

func selectionMark(selected bool) string {
	if selected {
		return "*"
	}
	return ""
}

func incentiveState(inc types.Incentive) string {
	if inc.Ended {
		return StatusBadge("ended")
	}
	return StatusBadge("active")
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
