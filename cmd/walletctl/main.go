package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arnac-io/nearmultisig/pkg/app"
	"github.com/arnac-io/nearmultisig/pkg/cache"
	"github.com/arnac-io/nearmultisig/pkg/config"
	"github.com/arnac-io/nearmultisig/pkg/history"
	"github.com/arnac-io/nearmultisig/pkg/multisig"
	"github.com/arnac-io/nearmultisig/pkg/rpc"
	"github.com/arnac-io/nearmultisig/pkg/sentry"
	"github.com/arnac-io/nearmultisig/pkg/signer"
)

// env holds the services shared by all commands of one invocation.
type env struct {
	cfg     config.Config
	log     *zap.Logger
	out     io.Writer
	format  outputFormat
	query   *multisig.Query
	builder *multisig.Builder
	history *history.Client
}

func newEnv(cfg config.Config, log *zap.Logger, out io.Writer) *env {
	opts := []rpc.Option{
		rpc.WithLogger(log),
		rpc.WithTimeout(cfg.NEAR.Timeout),
		rpc.WithFinality(rpc.Finality(cfg.NEAR.Finality)),
	}
	if cfg.NEAR.APIKey != "" {
		opts = append(opts, rpc.WithAPIKey(cfg.NEAR.APIKey))
	}
	if cfg.NEAR.RateLimit > 0 {
		opts = append(opts, rpc.WithRateLimit(cfg.NEAR.RateLimit, 1))
	}
	node := rpc.NewClient(cfg.NEAR.NodeURL, opts...)
	viewCache := cache.New(cache.WithTTL(cfg.Multisig.CacheTTL), cache.WithLogger(log))
	msOpts := []multisig.Option{
		multisig.WithFactory(cfg.Multisig.FactoryID),
		multisig.WithLogger(log),
	}

	e := &env{
		cfg:    cfg,
		log:    log,
		out:    out,
		format: formatTable,
		query:  multisig.NewQuery(node, viewCache, msOpts...),
		// keys never reach this process: transactions are printed for an external signer
		builder: multisig.NewBuilder(signer.NewDryRun(out), viewCache, msOpts...),
	}
	h, err := history.NewClient(cfg.NEAR.Network, history.WithLogger(log))
	if err != nil {
		log.Warn("transaction history is unavailable", zap.Error(err))
	} else {
		e.history = h
	}
	return e
}

func main() {
	cfg := config.Load()
	log := app.Logger(cfg.App.LogLevel)
	if err := sentry.Init(cfg.App.SentryDSN, cfg.NEAR.Network); err != nil {
		log.Warn("sentry is disabled", zap.Error(err))
	}

	ctx, stop := app.SignalContext(context.Background())
	err := rootCmd(newEnv(cfg, log, os.Stdout)).ExecuteContext(ctx)
	stop()
	if err != nil {
		sentry.CaptureError(err, sentry.SentryInfoData{"args": os.Args[1:]})
	}
	sentry.Flush()
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func rootCmd(e *env) *cobra.Command {
	var format string
	root := &cobra.Command{
		Use:   "walletctl",
		Short: "Inspect and operate NEAR multisig wallets",
		Long: `Inspect and operate NEAR multisig wallets.

Read commands query the configured NEAR node. Commands changing a wallet print the
transaction in the browser wallet format instead of signing it, so it can be passed to
an external signer.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			e.format = f
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&format, "output", "o", string(formatTable), "output format: table, yaml or json")

	root.AddCommand(
		infoCmd(e),
		requestsCmd(e),
		requestCmd(e),
		balanceCmd(e),
		historyCmd(e),
		factoryCmd(e),
		proposeCmd(e),
		requestActionCmd(e, "confirm", "Confirm a request", e.builder.Confirm),
		requestActionCmd(e, "revoke", "Revoke your confirmation of a request", e.builder.RevokeConfirmation),
		requestActionCmd(e, "delete", "Delete a request you created", e.builder.DeleteRequest),
		createCmd(e),
		deployCmd(e),
	)
	return root
}

func (e *env) render(v any) error {
	return render(e.out, e.format, v)
}

func (e *env) walletsOrArgs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(e.cfg.Multisig.Wallets) == 0 {
		return nil, fmt.Errorf("no wallet given and WALLETS is empty")
	}
	return e.cfg.Multisig.Wallets, nil
}
