// Package config defines the run configuration and how it is loaded.
//
// Conventions:
//   - Provide New(ctx) to build a Config with defaults.
//   - Functions accept context.Context as the first parameter.
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/holdsnap/internal/domain/allocation"
	"github.com/okian/holdsnap/internal/domain/replay"
	"github.com/okian/holdsnap/pkg/logger"
)

// LatestBlock makes the run end at the chain head.
const LatestBlock = "latest"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, also writes logs to a rotating file.
	LogFile string `koanf:"log_file"`

	// Endpoint is the Ethereum JSON-RPC URL.
	Endpoint string `koanf:"endpoint"`

	// Contract is the ERC-20 token whose transfers are replayed.
	Contract string `koanf:"contract"`

	// ContributionsContract lists the crowdsale buyers.
	ContributionsContract string `koanf:"contributions_contract"`

	// Input is the holder list file.
	Input string `koanf:"input"`

	// OutDir receives the run artifacts.
	OutDir string `koanf:"out_dir"`

	// ReferenceBlock is the first block of the holding window.
	ReferenceBlock uint64 `koanf:"reference_block"`

	// ToBlock is the last block of the window, or "latest".
	ToBlock string `koanf:"to_block"`

	// AirdropPercent is the share of the minimum balance airdropped, e.g. "1.5".
	AirdropPercent string `koanf:"airdrop_percent"`

	// TokenDecimals is the token's smallest-unit precision.
	TokenDecimals int `koanf:"token_decimals"`

	// EmitDistribution controls the airdrop_array artifact.
	EmitDistribution bool `koanf:"emit_distribution"`

	// CollisionPolicy is "overwrite" or "preserve".
	CollisionPolicy string `koanf:"collision_policy"`

	// Resume continues from the previous transaction log.
	Resume bool `koanf:"resume"`

	// StatusAddr serves /healthz and /stats while running; empty disables.
	StatusAddr string `koanf:"status_addr"`

	// RPCTimeoutMS bounds each ledger call.
	RPCTimeoutMS int `koanf:"rpc_timeout_ms"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		Input:            "holders.json",
		OutDir:           ".",
		ReferenceBlock:   7560016,
		ToBlock:          LatestBlock,
		AirdropPercent:   "1.5",
		TokenDecimals:    18,
		EmitDistribution: true,
		CollisionPolicy:  string(replay.Overwrite),
		RPCTimeoutMS:     30_000,
	}
}

// EndBlock returns the configured last block. latest is true when the run
// should end at the chain head instead.
func (c *Config) EndBlock() (block uint64, latest bool, err error) {
	s := strings.ToLower(strings.TrimSpace(c.ToBlock))
	if s == "" || s == LatestBlock {
		return 0, true, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: to_block %q", ErrInvalidConfig, c.ToBlock)
	}
	return n, false, nil
}

// Validate checks the fields shared by every command.
func (c *Config) Validate(_ context.Context) error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := allocation.ParsePercent(c.AirdropPercent); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := replay.ParsePolicy(c.CollisionPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 36 {
		return fmt.Errorf("%w: token_decimals %d out of range", ErrInvalidConfig, c.TokenDecimals)
	}
	if c.RPCTimeoutMS <= 0 {
		return fmt.Errorf("%w: rpc_timeout_ms must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Input) == "" {
		return fmt.Errorf("%w: input must not be empty", ErrInvalidConfig)
	}
	end, latest, err := c.EndBlock()
	if err != nil {
		return err
	}
	if !latest && end < c.ReferenceBlock {
		return fmt.Errorf("%w: to_block %d precedes reference_block %d", ErrInvalidConfig, end, c.ReferenceBlock)
	}
	return nil
}
