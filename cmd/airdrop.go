package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/holdsnap/internal/adapters/checkpoint"
	"github.com/okian/holdsnap/internal/adapters/holders"
	"github.com/okian/holdsnap/internal/adapters/ledger"
	service "github.com/okian/holdsnap/internal/app"
	"github.com/okian/holdsnap/internal/config"
	"github.com/okian/holdsnap/internal/domain/allocation"
	"github.com/okian/holdsnap/internal/domain/model"
	"github.com/okian/holdsnap/internal/domain/replay"
	"github.com/okian/holdsnap/pkg/logger"
	"github.com/okian/holdsnap/pkg/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newAirdropCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Compute minimum balances and airdrop amounts for the holder list",
		Example: `  holdsnap airdrop \
    --endpoint http://localhost:8545 \
    --contract 0x0000000000000000000000000000000000000000 \
    --input holders.json --reference-block 7560016 --percent 1.5`,
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

			if _, err := runAirdrop(ctx, cfg, client, log, metrics.NewManager()); err != nil {
				log.Error(ctx, "airdrop run failed", logger.Error(err))
				return err
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.Contract, "contract", cfg.Contract, "ERC-20 token contract address")
	fs.StringVar(&cfg.Input, "input", cfg.Input, "holder list file")
	fs.StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "directory for the run artifacts")
	fs.Uint64Var(&cfg.ReferenceBlock, "reference-block", cfg.ReferenceBlock, "first block of the holding window")
	fs.StringVar(&cfg.ToBlock, "to-block", cfg.ToBlock, `last block of the window, or "latest"`)
	fs.StringVar(&cfg.AirdropPercent, "percent", cfg.AirdropPercent, "percentage of the minimum balance to airdrop")
	fs.BoolVar(&cfg.EmitDistribution, "emit-distribution", cfg.EmitDistribution, "write the accounts/amounts distribution file")
	fs.StringVar(&cfg.CollisionPolicy, "collision-policy", cfg.CollisionPolicy, "same-block transfers: overwrite or preserve")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "skip holders already present in the transaction log")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "serve /healthz and /stats on this address while running")
	return cmd
}

// runAirdrop wires the pipeline over client and runs it to completion.
func runAirdrop(ctx context.Context, cfg *config.Config, client ledger.EVMClient, log logger.Logger, m *metrics.Manager) (model.RunAggregate, error) {
	var agg model.RunAggregate

	decimals := int32(cfg.TokenDecimals)
	src, err := ledger.NewEthereumSource(client, cfg.Contract,
		ledger.WithTokenDecimals(decimals),
		ledger.WithCallTimeout(time.Duration(cfg.RPCTimeoutMS)*time.Millisecond),
	)
	if err != nil {
		return agg, err
	}

	head, latest, err := cfg.EndBlock()
	if err != nil {
		return agg, err
	}
	if latest {
		if head, err = src.HeadBlock(ctx); err != nil {
			return agg, err
		}
	}
	if head < cfg.ReferenceBlock {
		return agg, fmt.Errorf("%w: head %d precedes reference block %d", config.ErrInvalidConfig, head, cfg.ReferenceBlock)
	}

	percent, err := allocation.ParsePercent(cfg.AirdropPercent)
	if err != nil {
		return agg, err
	}
	policy, err := replay.ParsePolicy(cfg.CollisionPolicy)
	if err != nil {
		return agg, err
	}

	list, err := holders.Load(cfg.Input)
	if err != nil {
		return agg, err
	}

	writer, err := checkpoint.NewWriter(cfg.OutDir, cfg.ReferenceBlock, head,
		checkpoint.WithDistribution(cfg.EmitDistribution),
		checkpoint.WithLogger(log.Named("checkpoint")),
		checkpoint.WithMetrics(m),
	)
	if err != nil {
		return agg, err
	}

	collector := ledger.NewCollector(src,
		ledger.WithCollectorLogger(log.Named("collector")),
		ledger.WithCollectorMetrics(m),
	)
	svc := service.New(collector, writer,
		service.WithBlockRange(cfg.ReferenceBlock, head),
		service.WithReplayer(replay.New(replay.WithPolicy(policy))),
		service.WithAllocator(allocation.New(allocation.WithPercent(percent), allocation.WithDecimals(decimals))),
		service.WithResume(cfg.Resume),
		service.WithRunID(uuid.NewString()),
		service.WithLogger(log.Named("run")),
		service.WithMetrics(m),
	)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, finish := context.WithCancel(gctx)
	defer finish()

	g.Go(func() error {
		// Ending the run also stops the status server.
		defer finish()
		var err error
		agg, err = svc.Run(runCtx, list)
		return err
	})
	if cfg.StatusAddr != "" {
		g.Go(func() error {
			return serveStatus(runCtx, cfg.StatusAddr, svc, m, log.Named("status"))
		})
	}
	if err := g.Wait(); err != nil {
		return agg, err
	}

	paths := writer.Paths()
	log.Info(ctx, "artifacts written",
		logger.String("minValue", paths.MinValue),
		logger.String("airdropMap", paths.AirdropMap),
		logger.String("transactions", paths.Transactions),
	)
	return agg, nil
}
