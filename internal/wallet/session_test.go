package wallet

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stakemate/stakemate/pkg/types"
)

const testAddr = "0x2ef5B89bFD5BA8C3b15879106C57010aA7A32D06"

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(filepath.Join(t.TempDir(), "wallet.json"))
}

func TestConnectReadOnly(t *testing.T) {
	s := newTestSession(t)

	if err := s.ConnectReadOnly(types.NetworkRinkeby, testAddr); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !s.Connected() {
		t.Error("expected connected")
	}
	if s.HasSigner() {
		t.Error("read-only session must not have a signer")
	}
	if s.Network() != types.NetworkRinkeby {
		t.Errorf("unexpected network: %s", s.Network())
	}
	if s.Address().Hex() != testAddr {
		t.Errorf("unexpected address: %s", s.Address().Hex())
	}
}

func TestConnectRejectsUnknownNetwork(t *testing.T) {
	s := newTestSession(t)
	if err := s.ConnectReadOnly("hardhat", testAddr); err == nil {
		t.Error("expected error for unknown network")
	}
	if err := s.ConnectReadOnly(types.NetworkMainnet, "nope"); err == nil {
		t.Error("expected error for invalid address")
	}
}

func TestTransactOptsWithoutSigner(t *testing.T) {
	s := newTestSession(t)
	_ = s.ConnectReadOnly(types.NetworkMainnet, testAddr)

	if _, err := s.TransactOpts(big.NewInt(1)); err != ErrNoSession {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestRestoreReadOnly(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "wallet.json")

	first := NewSession(cachePath)
	if err := first.ConnectReadOnly(types.NetworkRinkeby, testAddr); err != nil {
		t.Fatalf("connect: %v", err)
	}

	second := NewSession(cachePath)
	ok, err := second.Restore()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !ok {
		t.Fatal("expected restore to succeed")
	}
	if second.Address().Hex() != testAddr {
		t.Errorf("restored wrong address: %s", second.Address().Hex())
	}
}

func TestDisconnectClearsCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "wallet.json")

	s := NewSession(cachePath)
	_ = s.ConnectReadOnly(types.NetworkRinkeby, testAddr)
	s.Disconnect()

	if s.Connected() {
		t.Error("expected disconnected")
	}

	restored := NewSession(cachePath)
	ok, err := restored.Restore()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if ok {
		t.Error("expected no restore after disconnect")
	}
}

func TestOnChangeFires(t *testing.T) {
	s := newTestSession(t)

	changes := 0
	s.OnChange(func() { changes++ })

	_ = s.ConnectReadOnly(types.NetworkMainnet, testAddr)
	s.Disconnect()

	if changes != 2 {
		t.Errorf("expected 2 change notifications, got %d", changes)
	}
}

func TestRestoreEmptyCache(t *testing.T) {
	s := newTestSession(t)
	ok, err := s.Restore()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if ok {
		t.Error("expected no restore with empty cache")
	}
}
