package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/arnac-io/nearmultisig/pkg/amount"
	"github.com/arnac-io/nearmultisig/pkg/core"
	"github.com/arnac-io/nearmultisig/pkg/history"
	"github.com/arnac-io/nearmultisig/pkg/multisig"
	"github.com/arnac-io/nearmultisig/pkg/sentry"
	"github.com/arnac-io/nearmultisig/pkg/signer"
)

func infoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "info [wallet...]",
		Short: "Show members, threshold, pending requests and balance of wallets",
		Long:  "Show members, threshold, pending requests and balance of wallets. Without arguments the wallets from WALLETS are shown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallets, err := e.walletsOrArgs(args)
			if err != nil {
				return err
			}
			views := make(walletsView, 0, len(wallets))
			var errs error
			for _, id := range wallets {
				d, err := e.query.Dashboard(cmd.Context(), id)
				errs = multierr.Append(errs, err)
				v := walletView{
					Wallet:           id,
					Members:          d.Info.Members,
					NumConfirmations: d.Info.NumConfirmations,
					RequestNonce:     d.Info.RequestNonce,
					ActiveRequests:   d.Info.ActiveRequests,
				}
				for _, r := range d.Requests {
					if r.Actionable() {
						v.Actionable++
					}
				}
				if d.Balance != "" {
					v.Balance = amount.Humanize(d.Balance, displayPrecision)
				}
				if err != nil {
					v.Error = err.Error()
					sentry.Send("wallet dashboard is incomplete", sentry.SentryInfoData{"wallet": id, "error": err.Error()}, sentry.LevelWarning)
				}
				views = append(views, v)
			}
			if err := e.render(views); err != nil {
				return err
			}
			return errs
		},
	}
}

func requestsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "requests <wallet>",
		Short: "List pending requests of a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := e.query.Requests(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			views := make(requestsView, 0, len(requests))
			for _, r := range requests {
				views = append(views, newRequestView(r))
			}
			return e.render(views)
		},
	}
}

func requestCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "request <wallet> <id...>",
		Short: "Show requests by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint64, 0, len(args)-1)
			for _, s := range args[1:] {
				id, err := parseRequestID(s)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			views := make(requestsView, 0, len(ids))
			var errs error
			for _, res := range e.query.RequestsByIDs(cmd.Context(), args[0], ids) {
				if res.Err != nil {
					errs = multierr.Append(errs, res.Err)
					views = append(views, requestView{ID: res.ID, Error: res.Err.Error()})
					continue
				}
				views = append(views, newRequestView(res.Request))
			}
			if err := e.render(views); err != nil {
				return err
			}
			return errs
		},
	}
}

func balanceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show the native balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := e.query.AccountExists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("account %s does not exist", args[0])
			}
			balance, err := e.query.Balance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return e.render(newBalanceView(args[0], balance))
		},
	}
}

func historyCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <account>",
		Short: "Show the latest transactions of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.history == nil {
				return fmt.Errorf("no transaction history for network %s", e.cfg.NEAR.Network)
			}
			items, err := e.history.Transactions(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			views := make(historyViews, 0, len(items))
			for _, it := range items {
				views = append(views, historyView{
					Hash:     it.Hash,
					Time:     time.UnixMilli(it.BlockTimestamp).UTC().Format(time.RFC3339),
					Signer:   it.Signer,
					Receiver: it.Receiver,
					Method:   it.MethodName,
					Deposit:  amount.Humanize(it.Deposit, displayPrecision),
					Success:  it.Status,
					URL:      it.ExplorerURL,
				})
			}
			return e.render(views)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultLimit, "number of transactions")
	return cmd
}

type factoryView struct {
	Factory     string `json:"factory" yaml:"factory"`
	Owner       string `json:"owner" yaml:"owner"`
	HasCode     bool   `json:"has_code" yaml:"has_code"`
	WalletCount uint64 `json:"wallet_count" yaml:"wallet_count"`
}

func factoryCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "factory",
		Short: "Show the state of the wallet factory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v := factoryView{Factory: e.query.FactoryID()}
			var err error
			if v.Owner, err = e.query.FactoryOwner(ctx); err != nil {
				return err
			}
			if v.HasCode, err = e.query.FactoryHasCode(ctx); err != nil {
				return err
			}
			if v.WalletCount, err = e.query.FactoryWalletCount(ctx); err != nil {
				return err
			}
			return e.render(v)
		},
	}
}

func proposeCmd(e *env) *cobra.Command {
	var (
		receiver     string
		description  string
		transfer     string
		addMember    string
		removeMember string
		threshold    uint32
		method       string
		callArgs     string
		deposit      string
		gas          string
	)
	cmd := &cobra.Command{
		Use:   "propose <wallet>",
		Short: "Propose a new request",
		Example: `walletctl propose team.iron-wallet.testnet --receiver bob.testnet --transfer 1.5
walletctl propose team.iron-wallet.testnet --add-member carol.testnet
walletctl propose team.iron-wallet.testnet --receiver token.testnet --call ft_transfer --args '{"receiver_id":"bob.testnet","amount":"1"}' --deposit 0.000000000000000000000001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			walletID := args[0]
			if receiver == "" {
				receiver = walletID
			}
			input := core.RequestInput{ReceiverID: receiver, Description: description}
			if transfer != "" {
				yocto, err := amount.Parse(transfer)
				if err != nil {
					return err
				}
				input.Actions = append(input.Actions, core.TransferAction{Amount: yocto})
			}
			if method != "" {
				yocto, err := amount.Parse(deposit)
				if err != nil {
					return err
				}
				input.Actions = append(input.Actions, core.FunctionCallAction{MethodName: method, Args: callArgs, Deposit: yocto, Gas: gas})
			}
			if addMember != "" {
				input.Actions = append(input.Actions, core.AddMemberAction{Member: addMember})
			}
			if removeMember != "" {
				input.Actions = append(input.Actions, core.RemoveMemberAction{Member: removeMember})
			}
			if cmd.Flags().Changed("threshold") {
				input.Actions = append(input.Actions, core.ChangeNumConfirmationsAction{NumConfirmations: threshold})
			}
			_, err := e.builder.AddRequest(cmd.Context(), walletID, input)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&receiver, "receiver", "", "account the actions are executed against, the wallet itself by default")
	f.StringVar(&description, "description", "", "free-form description")
	f.StringVar(&transfer, "transfer", "", "transfer this many NEAR to the receiver")
	f.StringVar(&addMember, "add-member", "", "add a member to the wallet")
	f.StringVar(&removeMember, "remove-member", "", "remove a member from the wallet")
	f.Uint32Var(&threshold, "threshold", 0, "change the number of required confirmations")
	f.StringVar(&method, "call", "", "call this method on the receiver")
	f.StringVar(&callArgs, "args", "{}", "JSON arguments of --call")
	f.StringVar(&deposit, "deposit", "0", "NEAR attached to --call")
	f.StringVar(&gas, "gas", multisig.Gas100T, "gas attached to --call")
	return cmd
}

type requestAction func(ctx context.Context, walletID string, requestID uint64) (signer.Outcome, error)

func requestActionCmd(e *env, use, short string, action requestAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <wallet> <request id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRequestID(args[1])
			if err != nil {
				return err
			}
			_, err = action(cmd.Context(), args[0], id)
			return err
		},
	}
}

func createCmd(e *env) *cobra.Command {
	var (
		members   []string
		threshold uint32
		deposit   string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a wallet <name>.<factory> through the wallet factory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			walletID, _, err := e.builder.CreateWalletViaFactory(cmd.Context(), core.CreateWalletParams{
				Name:             args[0],
				Members:          members,
				NumConfirmations: threshold,
				Deposit:          deposit,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wallet id: %s\n", walletID)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&members, "member", nil, "wallet member, repeat for every member")
	cmd.Flags().Uint32Var(&threshold, "threshold", 1, "number of confirmations a request needs")
	cmd.Flags().StringVar(&deposit, "deposit", "5", "NEAR attached to fund the new wallet")
	return cmd
}

func deployCmd(e *env) *cobra.Command {
	var (
		members        []string
		threshold      uint32
		initialBalance string
		codePath       string
	)
	cmd := &cobra.Command{
		Use:   "deploy <account>",
		Short: "Create a sub-account and deploy the wallet contract to it directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(codePath)
			if err != nil {
				return err
			}
			balance, err := amount.Parse(initialBalance)
			if err != nil {
				return err
			}
			_, err = e.builder.DeployWallet(cmd.Context(), core.DeployWalletParams{
				AccountID:        args[0],
				Members:          members,
				NumConfirmations: threshold,
				InitialBalance:   balance,
				Code:             code,
			})
			return err
		},
	}
	cmd.Flags().StringSliceVar(&members, "member", nil, "wallet member, repeat for every member")
	cmd.Flags().Uint32Var(&threshold, "threshold", 1, "number of confirmations a request needs")
	cmd.Flags().StringVar(&initialBalance, "initial-balance", "5", "NEAR transferred to the new account")
	cmd.Flags().StringVar(&codePath, "code", "multisig.wasm", "path to the wallet contract wasm")
	return cmd
}

func parseRequestID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, core.NewValidationError("request_id", "must be a non-negative integer")
	}
	return id, nil
}
