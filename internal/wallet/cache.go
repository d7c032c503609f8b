package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stakemate/stakemate/pkg/types"
)

// ConnectMethod tags how the last wallet connection was established.
type ConnectMethod string

const (
	MethodKeystore ConnectMethod = "keystore"
	MethodReadOnly ConnectMethod = "readonly"
)

// connectionCache is the single persisted key of client state: the last
// used connection method and its parameters, read on startup to
// auto-reconnect and cleared on disconnect.
type connectionCache struct {
	Method         ConnectMethod `json:"method"`
	Network        types.Network `json:"network"`
	Address        string        `json:"address,omitempty"`
	KeystoreFile   string        `json:"keystore_file,omitempty"`
	PassphraseFile string        `json:"passphrase_file,omitempty"`
}

func readCache(path string) (*connectionCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read wallet cache: %w", err)
	}
	var c connectionCache
	if err := json.Unmarshal(data, &c); err != nil {
		// A corrupt cache is treated as absent, not fatal.
		return nil, nil
	}
	return &c, nil
}

func writeCache(path string, c *connectionCache) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create wallet cache dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write wallet cache: %w", err)
	}
	return nil
}

func clearCache(path string) {
	_ = os.Remove(path)
}
