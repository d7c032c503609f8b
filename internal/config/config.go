package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/stakemate/stakemate/pkg/types"
)

// Config is the complete daemon configuration.
type Config struct {
	Daemon   DaemonConfig                    `yaml:"daemon"`
	Networks map[types.Network]NetworkConfig `yaml:"networks"`
}

// DaemonConfig contains daemon-level settings.
type DaemonConfig struct {
	DataDir            string `yaml:"data_dir"`
	ListenAddr         string `yaml:"listen_addr"`  // HTTP API bind address
	MetricsAddr        string `yaml:"metrics_addr"` // Prometheus bind address ("" = disabled)
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"` // "json" or "text"
	BlockConfirmations int    `yaml:"block_confirmations"`
	MaxGasPriceGwei    int64  `yaml:"max_gas_price_gwei"` // 0 = no cap
}

// MaxGasPriceWei converts the configured gwei cap to wei, or nil when
// uncapped.
func (d DaemonConfig) MaxGasPriceWei() *big.Int {
	if d.MaxGasPriceGwei <= 0 {
		return nil
	}
	return new(big.Int).Mul(big.NewInt(d.MaxGasPriceGwei), big.NewInt(1e9))
}

// NetworkConfig describes one supported chain: endpoints, the two contract
// addresses the client binds to, and the incentive sources.
type NetworkConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	WSEndpoint string `yaml:"ws_endpoint"`
	ChainID    int64  `yaml:"chain_id"`

	PositionRegistry string `yaml:"position_registry"` // NFT position manager
	StakingLedger    string `yaml:"staking_ledger"`    // staking rewards contract
	RewardToken      string `yaml:"reward_token"`
	PairToken        string `yaml:"pair_token"`

	SubgraphURL string            `yaml:"subgraph_url"`
	Incentives  []IncentiveConfig `yaml:"incentives"`
}

// IncentiveConfig is a statically configured incentive entry. The id is
// the keccak256 hash of the ABI-encoded key; Validate rejects entries
// whose id does not match, so the id never needs re-deriving at runtime.
type IncentiveConfig struct {
	ID          string `yaml:"id"`
	RewardToken string `yaml:"reward_token"`
	Pool        string `yaml:"pool"`
	StartTime   int64  `yaml:"start_time"`
	EndTime     int64  `yaml:"end_time"`
	Refundee    string `yaml:"refundee"`
	Reward      string `yaml:"reward"` // base-10 integer, token base units
	Ended       bool   `yaml:"ended"`
}

// Incentive converts the config entry into the domain type.
func (ic IncentiveConfig) Incentive() (types.Incentive, error) {
	reward := big.NewInt(0)
	if ic.Reward != "" {
		var ok bool
		reward, ok = new(big.Int).SetString(ic.Reward, 10)
		if !ok || reward.Sign() < 0 {
			return types.Incentive{}, fmt.Errorf("invalid reward amount %q for incentive %s", ic.Reward, ic.ID)
		}
	}
	return types.Incentive{
		ID: ic.ID,
		Key: types.IncentiveKey{
			RewardToken: common.HexToAddress(ic.RewardToken),
			Pool:        common.HexToAddress(ic.Pool),
			StartTime:   big.NewInt(ic.StartTime),
			EndTime:     big.NewInt(ic.EndTime),
			Refundee:    common.HexToAddress(ic.Refundee),
		},
		Reward: reward,
		Ended:  ic.Ended,
	}, nil
}

// DefaultConfig returns the default configuration. The position registry
// address is the canonical NFT position manager deployment, identical on
// both networks.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Daemon: DaemonConfig{
			DataDir:            filepath.Join(home, ".stakemate"),
			ListenAddr:         "127.0.0.1:7810",
			MetricsAddr:        "127.0.0.1:7811",
			LogLevel:           "info",
			LogFormat:          "json",
			BlockConfirmations: 2,
			MaxGasPriceGwei:    300,
		},
		Networks: map[types.Network]NetworkConfig{
			types.NetworkMainnet: {
				RPCURL:           "https://eth.llamarpc.com",
				WSEndpoint:       "",
				ChainID:          1,
				PositionRegistry: "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
				StakingLedger:    "",
				SubgraphURL:      "",
			},
			types.NetworkRinkeby: {
				RPCURL:           "https://rinkeby.infura.io/v3/",
				WSEndpoint:       "",
				ChainID:          4,
				PositionRegistry: "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
				StakingLedger:    "0xc462aB5e66067153Bf1B368493E4744C1cA4BeC9",
				SubgraphURL:      "",
			},
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for any
// missing sections.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks addresses and incentive entries for every configured
// network.
func (c *Config) Validate() error {
	if c.Daemon.DataDir == "" {
		return fmt.Errorf("daemon.data_dir is required")
	}
	for name, net := range c.Networks {
		if !name.IsValid() {
			return fmt.Errorf("unknown network %q", name)
		}
		if net.ChainID <= 0 {
			return fmt.Errorf("network %s: chain_id is required", name)
		}
		for field, addr := range map[string]string{
			"position_registry": net.PositionRegistry,
			"staking_ledger":    net.StakingLedger,
			"reward_token":      net.RewardToken,
			"pair_token":        net.PairToken,
		} {
			if addr != "" && !common.IsHexAddress(addr) {
				return fmt.Errorf("network %s: %s is not a valid address: %q", name, field, addr)
			}
		}
		for i, inc := range net.Incentives {
			if inc.ID == "" {
				return fmt.Errorf("network %s: incentive %d has no id", name, i)
			}
			if inc.StartTime >= inc.EndTime {
				return fmt.Errorf("network %s: incentive %s: start_time must precede end_time", name, inc.ID)
			}
			converted, err := inc.Incentive()
			if err != nil {
				return fmt.Errorf("network %s: %w", name, err)
			}
			derived, err := converted.Key.Hash()
			if err != nil {
				return fmt.Errorf("network %s: incentive %s: %w", name, inc.ID, err)
			}
			if !strings.EqualFold(inc.ID, derived.Hex()) {
				return fmt.Errorf("network %s: incentive id %s does not match its key (want %s)", name, inc.ID, derived.Hex())
			}
		}
	}
	return nil
}

// Network returns the configuration for a network, or false when the
// network is not configured.
func (c *Config) Network(name types.Network) (NetworkConfig, bool) {
	net, ok := c.Networks[name]
	return net, ok
}

// WalletCachePath is the location of the persisted wallet-connection cache.
func (c *Config) WalletCachePath() string {
	return filepath.Join(c.Daemon.DataDir, "wallet.json")
}

// LogLevelValue maps the configured log level string onto a slog level
// name understood by the logging package setup.
func (c *Config) LogLevelValue() string {
	return strings.ToLower(c.Daemon.LogLevel)
}
