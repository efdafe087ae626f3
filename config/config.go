package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Milestone is one vesting step: an epoch day and the percentage that vests
// on it.
type Milestone struct {
	Day     uint64 `toml:"Day"`
	Percent uint8  `toml:"Percent"`
}

// Config is the daemon configuration loaded from TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	LogFile       string `toml:"LogFile"`
	Env           string `toml:"Env"`

	Owners        []string `toml:"Owners"`
	Required      int      `toml:"Required"`
	Capacity      int      `toml:"Capacity"`
	DailyLimit    string   `toml:"DailyLimit"`
	LedgerAddress string   `toml:"LedgerAddress"`

	// TransferEndpoint receives outbound disbursements as webhook calls.
	// When empty the daemon logs transfers instead of delivering them.
	TransferEndpoint string `toml:"TransferEndpoint"`
	// RaisedTotal is the crowdsale total the vesting schedule releases
	// against, in base units.
	RaisedTotal string `toml:"RaisedTotal"`

	ImmediatePercent     uint8       `toml:"ImmediatePercent"`
	Milestones           []Milestone `toml:"Milestones"`
	AllowedBeneficiaries []string    `toml:"AllowedBeneficiaries"`
}

// Load reads the configuration from the given path, creating a commented
// default file when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown keys: %v", path, undecoded)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./walletdata"
	}
	if strings.TrimSpace(cfg.DailyLimit) == "" {
		cfg.DailyLimit = "0"
	}
}

// Validate checks the participant set, quorum requirement and vesting
// schedule before the daemon attempts to construct the wallet.
func (cfg *Config) Validate() error {
	if len(cfg.Owners) == 0 {
		return fmt.Errorf("config: at least one owner required")
	}
	seen := make(map[string]struct{}, len(cfg.Owners))
	for _, owner := range cfg.Owners {
		normalized := strings.ToLower(strings.TrimSpace(owner))
		if normalized == "" {
			return fmt.Errorf("config: empty owner entry")
		}
		if _, dup := seen[normalized]; dup {
			return fmt.Errorf("config: duplicate owner %s", owner)
		}
		seen[normalized] = struct{}{}
	}
	if cfg.Required < 1 || cfg.Required > len(cfg.Owners) {
		return fmt.Errorf("config: Required %d out of range [1,%d]", cfg.Required, len(cfg.Owners))
	}
	if cfg.Capacity < 0 {
		return fmt.Errorf("config: negative Capacity")
	}
	total := int(cfg.ImmediatePercent)
	lastDay := uint64(0)
	for i, m := range cfg.Milestones {
		if m.Percent == 0 {
			return fmt.Errorf("config: milestone %d has zero percent", i)
		}
		if i > 0 && m.Day <= lastDay {
			return fmt.Errorf("config: milestone days must be strictly ascending")
		}
		lastDay = m.Day
		total += int(m.Percent)
	}
	if total != 100 {
		return fmt.Errorf("config: vesting percentages sum to %d, want exactly 100", total)
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:    "127.0.0.1:8645",
		DataDir:          "./walletdata",
		Required:         1,
		DailyLimit:       "0",
		ImmediatePercent: 100,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.WriteString(defaultConfigComment); err != nil {
		return nil, err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("config: wrote default file to %s; set Owners and restart", path)
}

const defaultConfigComment = `# fynwalletd configuration.
# Owners must list at least one participant address before the daemon starts.
# ImmediatePercent plus all milestone percents must sum to exactly 100.
`
