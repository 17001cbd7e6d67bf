package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the service-level settings for tipvaultd. Engine parameters
// such as season caps and commitment roots live in state and are administered
// over RPC; the file only carries what the process needs to boot.
type Config struct {
	RPCAddress        string `toml:"RPCAddress"`
	OpsAddress        string `toml:"OpsAddress"`
	DataDir           string `toml:"DataDir"`
	NetworkName       string `toml:"NetworkName"`
	Environment       string `toml:"Environment"`
	Debug             bool   `toml:"Debug"`
	AdminToken        string `toml:"AdminToken"`
	ProgramCap        string `toml:"ProgramCap"`
	GatewayMinHolding string `toml:"GatewayMinHolding"`
	AdminAddress      string `toml:"AdminAddress"`
	GatewayAddress    string `toml:"GatewayAddress"`
	CustodyAddress    string `toml:"CustodyAddress"`
	TreasuryAddress   string `toml:"TreasuryAddress"`
	PrecheckQuota     bool   `toml:"PrecheckQuota"`
}

// Load loads the configuration from the given path. A missing file produces a
// default configuration written back to the path so operators can edit it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.OpsAddress) == "" {
		cfg.OpsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./tipvault-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "tipvault-local"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if strings.TrimSpace(cfg.ProgramCap) == "" {
		cfg.ProgramCap = "0"
	}
	if strings.TrimSpace(cfg.GatewayMinHolding) == "" {
		cfg.GatewayMinHolding = "0"
	}
}

// Validate checks the address and cap fields for well-formedness.
func (c *Config) Validate() error {
	if _, ok := new(big.Int).SetString(c.ProgramCap, 10); !ok {
		return fmt.Errorf("config: ProgramCap %q is not a base-10 integer", c.ProgramCap)
	}
	if _, ok := new(big.Int).SetString(c.GatewayMinHolding, 10); !ok {
		return fmt.Errorf("config: GatewayMinHolding %q is not a base-10 integer", c.GatewayMinHolding)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"AdminAddress", c.AdminAddress},
		{"GatewayAddress", c.GatewayAddress},
		{"CustodyAddress", c.CustodyAddress},
		{"TreasuryAddress", c.TreasuryAddress},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		if _, err := ParseAddress(field.value); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	return nil
}

// ProgramCapInt returns the program cap as a big integer. Zero means the
// program-wide cap is disabled.
func (c *Config) ProgramCapInt() *big.Int {
	cap, ok := new(big.Int).SetString(c.ProgramCap, 10)
	if !ok {
		return big.NewInt(0)
	}
	return cap
}

// GatewayMinHoldingInt returns the gateway-local holding floor for tippers.
// Zero disables the check.
func (c *Config) GatewayMinHoldingInt() *big.Int {
	floor, ok := new(big.Int).SetString(c.GatewayMinHolding, 10)
	if !ok {
		return big.NewInt(0)
	}
	return floor
}

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex address %q", value)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("address %q must be 20 bytes", value)
	}
	copy(out[:], raw)
	return out, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
