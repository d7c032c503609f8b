package commands

import (
	"math/big"
	"testing"
)

func TestNewStatusCmd(t *testing.T) {
	cmd := NewStatusCmd()

	if cmd == nil {
		t.Fatal("NewStatusCmd returned nil")
	}

	if cmd.Use != "status" {
		t.Errorf("Use mismatch: got %s, want status", cmd.Use)
	}
}

func TestNewConnectCmd(t *testing.T) {
	cmd := NewConnectCmd()

	if cmd == nil {
		t.Fatal("NewConnectCmd returned nil")
	}

	if cmd.Use != "connect" {
		t.Errorf("Use mismatch: got %s, want connect", cmd.Use)
	}

	// Check flags exist
	for _, name := range []string{"network", "address", "keystore"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag should exist", name)
		}
	}
	if cmd.Flags().Lookup("passphrase") != nil {
		t.Error("passphrase must never be a flag")
	}
}

func TestNewStakeCmd(t *testing.T) {
	cmd := NewStakeCmd()

	if cmd == nil {
		t.Fatal("NewStakeCmd returned nil")
	}

	if cmd.Use != "stake [token-id]" {
		t.Errorf("Use mismatch: got %s, want stake [token-id]", cmd.Use)
	}
}

func TestNewWithdrawCmd(t *testing.T) {
	cmd := NewWithdrawCmd()

	if cmd == nil {
		t.Fatal("NewWithdrawCmd returned nil")
	}

	if cmd.Use != "withdraw [token-id]" {
		t.Errorf("Use mismatch: got %s, want withdraw [token-id]", cmd.Use)
	}
}

func TestNewIncentivesCmd(t *testing.T) {
	cmd := NewIncentivesCmd()

	if cmd == nil {
		t.Fatal("NewIncentivesCmd returned nil")
	}

	if cmd.Use != "incentives" {
		t.Errorf("Use mismatch: got %s, want incentives", cmd.Use)
	}

	// Check subcommands
	if !cmd.HasSubCommands() {
		t.Error("incentives should have a select subcommand")
	}
}

func TestNewRewardsCmd(t *testing.T) {
	cmd := NewRewardsCmd()

	if cmd == nil {
		t.Fatal("NewRewardsCmd returned nil")
	}

	if !cmd.HasSubCommands() {
		t.Error("rewards should have a claim subcommand")
	}

	found := false
	for _, sub := range cmd.Commands() {
		if sub.Name() == "claim" {
			found = true
		}
	}
	if !found {
		t.Error("missing rewards subcommand: claim")
	}
}

func TestFormatReward(t *testing.T) {
	wei := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	tests := []struct {
		amount *big.Int
		want   string
	}{
		{nil, "0"},
		{big.NewInt(0), "0"},
		{wei, "1"},
		{new(big.Int).Mul(wei, big.NewInt(1234567)), "1,234,567"},
	}

	for _, tt := range tests {
		got := FormatReward(tt.amount)
		if got != tt.want {
			t.Errorf("FormatReward(%v) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"0x1234", "0x1234"},
		{"0x1111111111111111111111111111111111111111", "0x1111...1111"},
	}

	for _, tt := range tests {
		got := FormatAddress(tt.addr)
		if got != tt.want {
			t.Errorf("FormatAddress(%s) = %s, want %s", tt.addr, got, tt.want)
		}
	}
}

func TestFormatIncentiveID(t *testing.T) {
	long := "0x48a0fcc9c9c1a5c9c1a5c9c1a5c9c1a5c9c1a5c9"
	got := FormatIncentiveID(long)
	if len(got) != 17 {
		t.Errorf("FormatIncentiveID length = %d, want 17", len(got))
	}
	if FormatIncentiveID("0xshort") != "0xshort" {
		t.Error("short ids must pass through unchanged")
	}
}
