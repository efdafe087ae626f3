package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
ListenAddress = "0.0.0.0:9000"
Owners = ["0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222"]
Required = 2
DailyLimit = "5000"
RaisedTotal = "1000000"
ImmediatePercent = 60

[[Milestones]]
Day = 10
Percent = 20

[[Milestones]]
Day = 20
Percent = 20
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddress)
	require.Len(t, cfg.Owners, 2)
	require.Equal(t, 2, cfg.Required)
	require.Equal(t, "5000", cfg.DailyLimit)
	require.Equal(t, uint8(60), cfg.ImmediatePercent)
	require.Len(t, cfg.Milestones, 2)
	// Unset fields pick up defaults.
	require.Equal(t, "./walletdata", cfg.DataDir)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
Owners = ["0x1111111111111111111111111111111111111111"]
Required = 1
ImmediatePercent = 100
Bogus = true
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown keys")
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	_, err := Load(path)
	require.Error(t, err)
	require.FileExists(t, path)

	// The generated file is parseable but fails validation until Owners is
	// populated.
	_, err = Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "owner")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Owners:           []string{"0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222"},
			Required:         2,
			ImmediatePercent: 60,
			Milestones: []Milestone{
				{Day: 10, Percent: 20},
				{Day: 20, Percent: 20},
			},
		}
	}
	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Owners = nil
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Owners = append(cfg.Owners, "0x1111111111111111111111111111111111111111")
	require.Error(t, cfg.Validate(), "duplicate owners must be rejected")

	cfg = base()
	cfg.Owners[1] = "0X1111111111111111111111111111111111111111"
	require.Error(t, cfg.Validate(), "duplicate detection must ignore case")

	cfg = base()
	cfg.Required = 3
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Required = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Milestones[1].Day = 10
	require.Error(t, cfg.Validate(), "milestone days must strictly ascend")

	cfg = base()
	cfg.Milestones[1].Percent = 30
	require.Error(t, cfg.Validate(), "percentages must sum to exactly 100")

	cfg = base()
	cfg.Milestones[0].Percent = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Capacity = -1
	require.Error(t, cfg.Validate())
}
