package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	nativecommon "stakevault/native/common"
)

// Config describes the stakevaultd runtime configuration.
type Config struct {
	ListenAddress   string `toml:"ListenAddress"`
	DataDir         string `toml:"DataDir"`
	Environment     string `toml:"Environment"`
	OperatorAddress string `toml:"OperatorAddress"`
	PoolAddress     string `toml:"PoolAddress"`
	BurnAddress     string `toml:"BurnAddress"`
	// PauseStaking makes every mutating staking operation fail while read
	// surfaces stay available. Intended for incident response.
	PauseStaking bool `toml:"PauseStaking"`
}

// Default returns the configuration applied when no file is present.
func Default() *Config {
	return &Config{
		ListenAddress: ":8464",
		DataDir:       "./stakevault-data",
		Environment:   "local",
	}
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, createDefault(path, cfg)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate ensures the configuration values are usable before the daemon
// starts serving.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	for name, value := range map[string]string{
		"OperatorAddress": c.OperatorAddress,
		"PoolAddress":     c.PoolAddress,
		"BurnAddress":     c.BurnAddress,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s must be configured", name)
		}
		if !common.IsHexAddress(value) {
			return fmt.Errorf("config: %s is not a valid hex address", name)
		}
	}
	return nil
}

// Operator returns the parsed operator address.
func (c *Config) Operator() [20]byte { return common.HexToAddress(c.OperatorAddress) }

// Pool returns the parsed pool custody address.
func (c *Config) Pool() [20]byte { return common.HexToAddress(c.PoolAddress) }

// Burn returns the parsed penalty sink address.
func (c *Config) Burn() [20]byte { return common.HexToAddress(c.BurnAddress) }

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

// Pauses returns the module pause view derived from the configuration.
func (c *Config) Pauses() nativecommon.PauseView {
	return pauseSet{"staking": c.PauseStaking}
}
