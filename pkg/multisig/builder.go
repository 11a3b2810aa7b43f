package multisig

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/arnac-io/nearmultisig/pkg/amount"
	"github.com/arnac-io/nearmultisig/pkg/cache"
	"github.com/arnac-io/nearmultisig/pkg/core"
	"github.com/arnac-io/nearmultisig/pkg/signer"
)

const (
	// Gas100T is attached to every wallet method call.
	Gas100T = "100000000000000"
	// Gas300T is attached to factory create, which deploys and initializes a contract.
	Gas300T = "300000000000000"
)

// Builder turns multisig operations into transactions and hands them to a signer.
// Nothing is retried. After every submission, successful or not, the cached state
// of the receiver is dropped so the next read goes to the network.
type Builder struct {
	signer    signer.Signer
	cache     *cache.Cache
	factoryID string
	logger    *zap.Logger
}

func NewBuilder(s signer.Signer, c *cache.Cache, opts ...Option) *Builder {
	o := newOptions(opts)
	return &Builder{
		signer:    s,
		cache:     c,
		factoryID: o.factoryID,
		logger:    o.logger,
	}
}

type addRequestArgs struct {
	Request core.RequestInput `json:"request"`
}

// AddRequest proposes a new request. Invalid input is rejected before anything is sent.
func (b *Builder) AddRequest(ctx context.Context, walletID string, input core.RequestInput) (signer.Outcome, error) {
	if err := validateWalletID(walletID); err != nil {
		return signer.Outcome{}, err
	}
	if err := input.Validate(); err != nil {
		return signer.Outcome{}, err
	}
	return b.callWallet(ctx, walletID, "add_request", addRequestArgs{Request: input})
}

func (b *Builder) Confirm(ctx context.Context, walletID string, requestID uint64) (signer.Outcome, error) {
	return b.requestCall(ctx, walletID, "confirm", requestID)
}

func (b *Builder) RevokeConfirmation(ctx context.Context, walletID string, requestID uint64) (signer.Outcome, error) {
	return b.requestCall(ctx, walletID, "revoke_confirmation", requestID)
}

// DeleteRequest removes a request. The contract only lets its requester do that.
func (b *Builder) DeleteRequest(ctx context.Context, walletID string, requestID uint64) (signer.Outcome, error) {
	return b.requestCall(ctx, walletID, "delete_request", requestID)
}

func (b *Builder) requestCall(ctx context.Context, walletID, method string, requestID uint64) (signer.Outcome, error) {
	if err := validateWalletID(walletID); err != nil {
		return signer.Outcome{}, err
	}
	return b.callWallet(ctx, walletID, method, requestIDArgs{RequestID: requestID})
}

func (b *Builder) callWallet(ctx context.Context, walletID, method string, args any) (signer.Outcome, error) {
	call, err := functionCall(method, args, Gas100T, "0")
	if err != nil {
		return signer.Outcome{}, err
	}
	// executed actions can move balances of any account, the signer's included
	defer b.cache.Clear()
	return b.submit(ctx, signer.Transaction{ReceiverID: walletID, Actions: []signer.Action{call}})
}

// CreateWalletViaFactory asks the factory to deploy a new wallet as <name>.<factory>,
// attaching the deposit that funds the new account. It returns the id of the new wallet.
// The whole cache is dropped afterwards since factory counters and the new account change.
func (b *Builder) CreateWalletViaFactory(ctx context.Context, params core.CreateWalletParams) (string, signer.Outcome, error) {
	if err := params.Validate(); err != nil {
		return "", signer.Outcome{}, err
	}
	deposit, err := amount.Parse(params.Deposit)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return "", signer.Outcome{}, core.NewValidationError("deposit", verr.Reason)
		}
		return "", signer.Outcome{}, err
	}
	walletID := params.Name + "." + b.factoryID
	if !core.IsValidAccountID(walletID) {
		return "", signer.Outcome{}, core.NewValidationError("name", "makes an invalid account id "+walletID)
	}
	call, err := functionCall("create", params, Gas300T, deposit)
	if err != nil {
		return "", signer.Outcome{}, err
	}
	defer b.cache.Clear()
	outcome, err := b.submit(ctx, signer.Transaction{ReceiverID: b.factoryID, Actions: []signer.Action{call}})
	if err != nil {
		return "", outcome, err
	}
	return walletID, outcome, nil
}

type newWalletArgs struct {
	Members          []string `json:"members"`
	NumConfirmations uint32   `json:"num_confirmations"`
}

// DeployWallet creates params.AccountID, funds it, deploys the wallet code to it and
// initializes it, all in one transaction signed by the parent account.
func (b *Builder) DeployWallet(ctx context.Context, params core.DeployWalletParams) (signer.Outcome, error) {
	if err := params.Validate(); err != nil {
		return signer.Outcome{}, err
	}
	initCall, err := functionCall("new", newWalletArgs{
		Members:          params.Members,
		NumConfirmations: params.NumConfirmations,
	}, Gas100T, "0")
	if err != nil {
		return signer.Outcome{}, err
	}
	defer b.cache.Clear()
	return b.submit(ctx, signer.Transaction{
		ReceiverID: params.AccountID,
		Actions: []signer.Action{
			signer.CreateAccount{},
			signer.Transfer{Deposit: params.InitialBalance},
			signer.DeployContract{Code: params.Code},
			initCall,
		},
	})
}

func (b *Builder) submit(ctx context.Context, tx signer.Transaction) (signer.Outcome, error) {
	outcome, err := b.signer.SignAndSendTransaction(ctx, tx)
	if err != nil {
		b.logger.Warn("transaction was not submitted",
			zap.String("receiver", tx.ReceiverID),
			zap.Error(err))
		return outcome, &core.SignerError{Err: err}
	}
	b.logger.Info("transaction submitted",
		zap.String("receiver", tx.ReceiverID),
		zap.String("hash", outcome.TransactionHash))
	return outcome, nil
}

func functionCall(method string, args any, gas, deposit string) (signer.FunctionCall, error) {
	bs, err := json.Marshal(args)
	if err != nil {
		return signer.FunctionCall{}, errors.Wrapf(err, "encode %s args", method)
	}
	return signer.FunctionCall{MethodName: method, Args: bs, Gas: gas, Deposit: deposit}, nil
}

func validateWalletID(walletID string) error {
	if !core.IsValidAccountID(walletID) {
		return core.NewValidationError("wallet_id", "must be a valid account id")
	}
	return nil
}
