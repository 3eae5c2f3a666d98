package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/okian/holdsnap/internal/adapters/holders"
	"github.com/okian/holdsnap/internal/adapters/ledger"
	"github.com/okian/holdsnap/internal/config"
	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/okian/holdsnap/pkg/logger"
	"github.com/spf13/cobra"
)

func newContributionsCommand(cfg *config.Config) *cobra.Command {
	var (
		output string
		block  uint64
	)

	cmd := &cobra.Command{
		Use:   "contributions",
		Short: "Export token buyers from the Contributions contract as a holder list",
		Long: `Reads every buyer and its purchased amount from the crowdsale Contributions
contract and writes them in the holder list format consumed by "airdrop".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log, closeLog, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			client, err := ledger.DialEVMClient(ctx, cfg.Endpoint)
			if err != nil {
				log.Error(ctx, "failed to dial ledger", logger.String("endpoint", cfg.Endpoint), logger.Error(err))
				return fmt.Errorf("dial ledger: %w", err)
			}
			defer client.Close()

			if output == "" {
				output = cfg.Input
			}
			_, err = runContributions(ctx, cfg, client, output, block, log)
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.ContributionsContract, "contributions-contract", cfg.ContributionsContract, "Contributions contract address")
	fs.StringVar(&output, "output", "", "holder list to write (defaults to the configured input)")
	fs.Uint64Var(&block, "block", 0, "block to read the contract state at (0 reads the latest)")
	return cmd
}

// runContributions reads the contract through caller and saves the list.
func runContributions(ctx context.Context, cfg *config.Config, caller ledger.ContractCaller, output string, blockNumber uint64, log logger.Logger) ([]model.Contributor, error) {
	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}

	reader, err := ledger.NewContributionsReader(caller, cfg.ContributionsContract, int32(cfg.TokenDecimals), block, log.Named("contributions"))
	if err != nil {
		return nil, err
	}
	list, err := reader.Contributors(ctx)
	if err != nil {
		return nil, err
	}
	if err := holders.Save(output, list); err != nil {
		return nil, err
	}

	log.Info(ctx, "contributors exported",
		logger.Int("count", len(list)),
		logger.String("path", output),
	)
	return list, nil
}
