package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/rkumarchou/FYNTokens/config"
	"github.com/rkumarchou/FYNTokens/core"
	"github.com/rkumarchou/FYNTokens/core/types"
	"github.com/rkumarchou/FYNTokens/native/vesting"
	"github.com/rkumarchou/FYNTokens/observability/logging"
	"github.com/rkumarchou/FYNTokens/rpc"
	"github.com/rkumarchou/FYNTokens/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("FYN_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("fynwalletd", env, cfg.LogFile)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	params, err := walletParams(cfg, logger)
	if err != nil {
		logger.Error("Invalid wallet configuration", slog.Any("error", err))
		os.Exit(1)
	}
	params.Store = storage.NewWalletStore(db)

	wallet, err := core.New(params)
	if err != nil {
		logger.Error("Failed to construct wallet", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("wallet ready",
		slog.Int("owners", wallet.NumOwners()),
		slog.Int("required", wallet.Required()),
		slog.String("dailyLimit", wallet.DailyLimit().Dec()),
	)

	server := rpc.NewServer(wallet, logger)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func walletParams(cfg *config.Config, logger *slog.Logger) (core.Params, error) {
	owners := make([]types.Address, 0, len(cfg.Owners))
	for _, raw := range cfg.Owners {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return core.Params{}, err
		}
		owners = append(owners, addr)
	}
	beneficiaries := make([]types.Address, 0, len(cfg.AllowedBeneficiaries))
	for _, raw := range cfg.AllowedBeneficiaries {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return core.Params{}, err
		}
		beneficiaries = append(beneficiaries, addr)
	}
	dailyLimit, err := uint256.FromDecimal(cfg.DailyLimit)
	if err != nil {
		return core.Params{}, fmt.Errorf("invalid DailyLimit: %w", err)
	}
	milestones := make([]vesting.Milestone, 0, len(cfg.Milestones))
	for _, m := range cfg.Milestones {
		milestones = append(milestones, vesting.Milestone{Day: m.Day, Percent: m.Percent})
	}
	var ledgerAddr types.Address
	if strings.TrimSpace(cfg.LedgerAddress) != "" {
		ledgerAddr, err = types.ParseAddress(cfg.LedgerAddress)
		if err != nil {
			return core.Params{}, fmt.Errorf("invalid LedgerAddress: %w", err)
		}
	}
	var crowdsale core.CrowdsaleLedger
	if strings.TrimSpace(cfg.RaisedTotal) != "" {
		raised, err := uint256.FromDecimal(cfg.RaisedTotal)
		if err != nil {
			return core.Params{}, fmt.Errorf("invalid RaisedTotal: %w", err)
		}
		crowdsale = &staticCrowdsale{raised: raised}
	}
	return core.Params{
		Owners:               owners,
		Required:             cfg.Required,
		Capacity:             cfg.Capacity,
		DailyLimit:           dailyLimit,
		ImmediatePercent:     cfg.ImmediatePercent,
		Milestones:           milestones,
		AllowedBeneficiaries: beneficiaries,
		LedgerAddress:        ledgerAddr,
		Transferor:           newTransferor(cfg.TransferEndpoint, logger),
		Crowdsale:            crowdsale,
	}, nil
}

// staticCrowdsale serves a fixed raised total from configuration for
// deployments that run without a live crowdsale ledger.
type staticCrowdsale struct {
	raised *uint256.Int
}

func (s *staticCrowdsale) TotalRaised() *uint256.Int {
	return new(uint256.Int).Set(s.raised)
}

func (s *staticCrowdsale) ReduceRaised(amount *uint256.Int) error {
	if amount == nil {
		return nil
	}
	if amount.Gt(s.raised) {
		return fmt.Errorf("crowdsale: reduction exceeds raised total")
	}
	s.raised = new(uint256.Int).Sub(s.raised, amount)
	return nil
}

func newTransferor(endpoint string, logger *slog.Logger) *webhookTransferor {
	return &webhookTransferor{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// webhookTransferor delivers disbursements to the configured endpoint. A
// non-2xx response counts as a failed external transfer. With no endpoint
// configured transfers are logged and succeed, which is only suitable for
// development.
type webhookTransferor struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func (t *webhookTransferor) Transfer(to types.Address, amount *uint256.Int, payload []byte) error {
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	if t.endpoint == "" {
		t.logger.Info("transfer (no endpoint configured)",
			slog.String("to", to.String()),
			slog.String("amount", amount.Dec()),
		)
		return nil
	}
	body, err := json.Marshal(map[string]string{
		"to":      to.String(),
		"amount":  amount.Dec(),
		"payload": hex.EncodeToString(payload),
	})
	if err != nil {
		return err
	}
	resp, err := t.client.Post(t.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("transfer endpoint returned %s", resp.Status)
	}
	return nil
}
