package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/pkg/types"
)

// ErrNoSession is returned by signing operations when no wallet is
// connected or the session is read-only.
var ErrNoSession = fmt.Errorf("no signing wallet connected")

// Session is the account session: the current network, connected address
// and signing key. All contract handles and loaded incentive/position
// data are scoped to exactly one session generation; every change runs
// the registered listeners so downstream components can invalidate.
type Session struct {
	cachePath string

	mu        sync.RWMutex
	network   types.Network
	address   common.Address
	key       *ecdsa.PrivateKey
	connected bool

	listeners []func()
}

// NewSession creates a disconnected session. cachePath locates the
// persisted connection cache used for auto-reconnect.
func NewSession(cachePath string) *Session {
	return &Session{cachePath: cachePath}
}

// ConnectKeystore connects with a signing key decrypted from a keystore
// JSON file and persists the connection for auto-reconnect.
func (s *Session) ConnectKeystore(network types.Network, keystoreFile, passphrase string) error {
	if !network.IsValid() {
		return fmt.Errorf("unsupported network %q", network)
	}

	data, err := os.ReadFile(keystoreFile)
	if err != nil {
		return fmt.Errorf("failed to read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return fmt.Errorf("failed to decrypt keystore: %w", err)
	}

	s.mu.Lock()
	s.network = network
	s.key = key.PrivateKey
	s.address = crypto.PubkeyToAddress(key.PrivateKey.PublicKey)
	s.connected = true
	s.mu.Unlock()

	if err := writeCache(s.cachePath, &connectionCache{
		Method:       MethodKeystore,
		Network:      network,
		KeystoreFile: keystoreFile,
	}); err != nil {
		logging.Warn("failed to persist wallet connection", logging.Err(err))
	}

	logging.Info("wallet connected",
		logging.Network(string(network)),
		logging.Address(s.Address().Hex()))
	s.notify()
	return nil
}

// ConnectReadOnly connects without a signing key. Reads work; mutations
// return ErrNoSession.
func (s *Session) ConnectReadOnly(network types.Network, address string) error {
	if !network.IsValid() {
		return fmt.Errorf("unsupported network %q", network)
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address %q", address)
	}

	s.mu.Lock()
	s.network = network
	s.key = nil
	s.address = common.HexToAddress(address)
	s.connected = true
	s.mu.Unlock()

	if err := writeCache(s.cachePath, &connectionCache{
		Method:  MethodReadOnly,
		Network: network,
		Address: address,
	}); err != nil {
		logging.Warn("failed to persist wallet connection", logging.Err(err))
	}

	logging.Info("wallet connected read-only",
		logging.Network(string(network)),
		logging.Address(address))
	s.notify()
	return nil
}

// Restore attempts to reconnect using the persisted connection cache.
// Returns false when no cached connection exists or it cannot be
// restored without interaction (keystore with no passphrase file).
func (s *Session) Restore() (bool, error) {
	c, err := readCache(s.cachePath)
	if err != nil || c == nil {
		return false, err
	}

	switch c.Method {
	case MethodReadOnly:
		if err := s.ConnectReadOnly(c.Network, c.Address); err != nil {
			return false, err
		}
		return true, nil
	case MethodKeystore:
		if c.PassphraseFile == "" {
			return false, nil
		}
		pass, err := os.ReadFile(c.PassphraseFile)
		if err != nil {
			return false, fmt.Errorf("failed to read passphrase file: %w", err)
		}
		if err := s.ConnectKeystore(c.Network, c.KeystoreFile, strings.TrimSpace(string(pass))); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// SetPassphraseFile records a passphrase file in the connection cache so
// Restore can reconnect a keystore session unattended.
func (s *Session) SetPassphraseFile(path string) error {
	c, err := readCache(s.cachePath)
	if err != nil {
		return err
	}
	if c == nil || c.Method != MethodKeystore {
		return fmt.Errorf("no keystore connection to update")
	}
	c.PassphraseFile = path
	return writeCache(s.cachePath, c)
}

// Disconnect clears the session and removes the persisted connection.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.network = ""
	s.address = common.Address{}
	s.key = nil
	s.connected = false
	s.mu.Unlock()

	clearCache(s.cachePath)
	logging.Info("wallet disconnected")
	s.notify()
}

// Connected reports whether a session (signing or read-only) is active.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// HasSigner reports whether the session can sign transactions.
func (s *Session) HasSigner() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// Network returns the current network, or "" when disconnected.
func (s *Session) Network() types.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network
}

// Address returns the connected address (zero when disconnected).
func (s *Session) Address() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// TransactOpts builds signing options for the given chain.
func (s *Session) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	s.mu.RLock()
	key := s.key
	s.mu.RUnlock()

	if key == nil {
		return nil, ErrNoSession
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return auth, nil
}

// OnChange registers a listener invoked after every connect, disconnect
// or network switch. Listeners run synchronously on the mutating call.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.RLock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}
