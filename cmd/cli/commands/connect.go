package commands

import (
	"fmt"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stakemate/stakemate/pkg/types"
)

var (
	connectNetwork  string
	connectAddress  string
	connectKeystore string
)

// NewConnectCmd creates the wallet connect command.
func NewConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a wallet to the daemon",
		Long: `Connect a wallet session on the daemon.

Two modes are supported:
  read-only  - watch an address without signing capability
  keystore   - unlock a geth keystore file for transaction signing

Without flags an interactive wizard walks through the choices. The
keystore passphrase is always prompted, never taken from a flag.`,
		RunE: runConnect,
	}

	cmd.Flags().StringVar(&connectNetwork, "network", "", "Network to connect to (mainnet, rinkeby)")
	cmd.Flags().StringVar(&connectAddress, "address", "", "Address for a read-only session")
	cmd.Flags().StringVar(&connectKeystore, "keystore", "", "Path to a keystore file for a signing session")

	return cmd
}

func runConnect(cmd *cobra.Command, args []string) error {
	c := GetClientOrDie()

	req := ConnectRequest{
		Network:      connectNetwork,
		Address:      connectAddress,
		KeystoreFile: connectKeystore,
	}
	if req.Network == "" || (req.Address == "" && req.KeystoreFile == "") {
		if !isTTY() {
			return fmt.Errorf("--network plus --address or --keystore are required without a terminal")
		}
		if err := promptConnect(&req); err != nil {
			return err
		}
	}

	if req.KeystoreFile != "" {
		fmt.Print("Keystore passphrase: ")
		passphrase, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		req.Passphrase = string(passphrase)
	}

	var status *StatusInfo
	err := WithSpinner("Connecting wallet", func() error {
		var err error
		status, err = c.Connect(req)
		return err
	})
	if err != nil {
		return err
	}

	mode := "read-only"
	if status.Signer {
		mode = "keystore"
	}
	fmt.Println(StatusBox("Session", [][2]string{
		{"Network", status.Network},
		{"Address", FormatAddress(status.Address)},
		{"Mode", mode},
	}))
	if !status.Signer {
		fmt.Println(Hint("read-only sessions cannot stake or claim; reconnect with --keystore to sign"))
	}
	return nil
}

func promptConnect(req *ConnectRequest) error {
	networkOptions := make([]huh.Option[string], 0, len(types.AvailableNetworks))
	for _, n := range types.AvailableNetworks {
		networkOptions = append(networkOptions, huh.NewOption(string(n), string(n)))
	}

	var mode string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Network").
				Options(networkOptions...).
				Value(&req.Network),
			huh.NewSelect[string]().
				Title("Session mode").
				Options(
					huh.NewOption("Read-only — watch an address", "readonly"),
					huh.NewOption("Keystore — unlock a file for signing", "keystore"),
				).
				Value(&mode),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if mode == "keystore" {
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Keystore file path").
				Value(&req.KeystoreFile),
		)).Run()
	}
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Address to watch").
			Value(&req.Address),
	)).Run()
}

// NewDisconnectCmd creates the wallet disconnect command.
func NewDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect the wallet session",
		Long:  "End the daemon's wallet session and clear all published position and reward state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := GetClientOrDie()
			if err := c.Disconnect(); err != nil {
				return err
			}
			Success("session disconnected")
			return nil
		},
	}
}
