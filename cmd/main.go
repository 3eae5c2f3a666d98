package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/holdsnap/internal/config"
	"github.com/okian/holdsnap/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Read configuration (defaults -> optional file -> env); flags override it
	// and the root command validates the result once they are parsed.
	cfg, err := config.Read(ctx)
	if err != nil {
		// Logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := newRootCommand(cfg).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "holdsnap",
		Short: "Compute an airdrop from each holder's minimum token balance",
		Long: `holdsnap replays every holder's ERC-20 transfers over a block window,
finds the lowest balance each holder kept, and grants a percentage of it.
Results are checkpointed after every holder.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.Validate(cmd.Context())
		},
	}

	fs := root.PersistentFlags()
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write logs to this rotating file")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Ethereum JSON-RPC endpoint")
	fs.IntVar(&cfg.TokenDecimals, "token-decimals", cfg.TokenDecimals, "token smallest-unit precision")
	fs.IntVar(&cfg.RPCTimeoutMS, "rpc-timeout-ms", cfg.RPCTimeoutMS, "timeout for each ledger call")

	root.AddCommand(
		newAirdropCommand(cfg),
		newContributionsCommand(cfg),
	)
	return root
}

// newLogger builds the process logger from cfg. The returned func closes
// the log file.
func newLogger(cfg *config.Config) (logger.Logger, func() error, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	l, closeFn := logger.New(logger.WithLevel(level), logger.WithFile(cfg.LogFile))
	return l, closeFn, nil
}
