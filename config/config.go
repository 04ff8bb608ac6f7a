package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the daemon configuration, loaded from TOML. A missing file is
// created with defaults rather than treated as an error so a fresh node
// starts with one command.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	DefaultAdmin   string `toml:"DefaultAdmin"`
	TreasuryWallet string `toml:"TreasuryWallet"`

	TransactionFeeBps     uint64 `toml:"TransactionFeeBps"`
	TransactionFeeEnabled bool   `toml:"TransactionFeeEnabled"`

	TradingFeeBps    uint64 `toml:"TradingFeeBps"`
	RewardRate       string `toml:"RewardRate"`
	RewardPeriodDays uint64 `toml:"RewardPeriodDays"`

	// The stablecoin paired against USDN in the liquidity pool the daemon
	// creates at startup.
	PairedTokenName   string `toml:"PairedTokenName"`
	PairedTokenSymbol string `toml:"PairedTokenSymbol"`

	RateLimitPerMinute float64 `toml:"RateLimitPerMinute"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
}

const (
	defaultListenAddress = ":8645"
	defaultDataDir       = "./nuchain-data"
	maxFeeBps            = 1000
)

// Load reads the configuration at path, creating a default file when none
// exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 600
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.RewardPeriodDays == 0 {
		cfg.RewardPeriodDays = 1
	}
	if cfg.TradingFeeBps == 0 {
		cfg.TradingFeeBps = 300
	}
	if strings.TrimSpace(cfg.PairedTokenName) == "" {
		cfg.PairedTokenName = "Partner Stablecoin"
	}
	if strings.TrimSpace(cfg.PairedTokenSymbol) == "" {
		cfg.PairedTokenSymbol = "PUSD"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:    defaultListenAddress,
		DataDir:          defaultDataDir,
		Environment:      "local",
		TradingFeeBps:    300,
		RewardRate:       "1000000000000000",
		RewardPeriodDays: 1,

		PairedTokenName:   "Partner Stablecoin",
		PairedTokenSymbol: "PUSD",

		RateLimitPerMinute: 600,
		RateLimitBurst:     20,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create %s: %w", path, err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode defaults: %w", err)
	}
	return cfg, nil
}

// Validate applies the bounds the engines would otherwise reject at runtime.
func (c *Config) Validate() error {
	if c.TransactionFeeBps > maxFeeBps {
		return fmt.Errorf("config: TransactionFeeBps %d exceeds the %d cap", c.TransactionFeeBps, maxFeeBps)
	}
	if c.TradingFeeBps > maxFeeBps {
		return fmt.Errorf("config: TradingFeeBps %d exceeds the %d cap", c.TradingFeeBps, maxFeeBps)
	}
	if c.DefaultAdmin != "" && !common.IsHexAddress(c.DefaultAdmin) {
		return fmt.Errorf("config: DefaultAdmin %q is not a hex address", c.DefaultAdmin)
	}
	if c.TreasuryWallet != "" && !common.IsHexAddress(c.TreasuryWallet) {
		return fmt.Errorf("config: TreasuryWallet %q is not a hex address", c.TreasuryWallet)
	}
	return nil
}

// AdminAddress parses the configured default admin.
func (c *Config) AdminAddress() common.Address {
	return common.HexToAddress(c.DefaultAdmin)
}

// TreasuryAddress parses the configured treasury wallet.
func (c *Config) TreasuryAddress() common.Address {
	return common.HexToAddress(c.TreasuryWallet)
}
