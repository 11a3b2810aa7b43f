// Package multisig reads and changes the state of multisig wallet contracts.
//
// Query serves typed view calls through a shared view-call cache.
// Builder turns user intents into signed contract calls and invalidates what they change.
package multisig

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/arnac-io/nearmultisig/pkg/cache"
	"github.com/arnac-io/nearmultisig/pkg/core"
	"github.com/arnac-io/nearmultisig/pkg/rpc"
)

var queryTimeHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "multisig_query_functions_time",
		Help:    "Multisig query functions execution duration distribution in seconds",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 1, 5, 10},
	},
	[]string{"method"},
)

// DefaultFactoryID is the factory deploying wallets as its sub-accounts on testnet.
const DefaultFactoryID = "iron-wallet.testnet"

// Node is the part of the RPC transport used to read chain state.
type Node interface {
	CallFunction(ctx context.Context, accountID, methodName string, args []byte) ([]byte, error)
	ViewAccountRaw(ctx context.Context, accountID string) (json.RawMessage, error)
}

// Query reads multisig state through the view-call cache.
// Every method returns freshly decoded values, so callers may modify them freely.
type Query struct {
	node      Node
	cache     *cache.Cache
	factoryID string
	logger    *zap.Logger
}

type Options struct {
	factoryID string
	logger    *zap.Logger
}

type Option func(o *Options)

// WithFactory sets the account id of the wallet factory contract.
func WithFactory(factoryID string) Option {
	return func(o *Options) {
		o.factoryID = factoryID
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *Options {
	o := &Options{
		factoryID: DefaultFactoryID,
		logger:    zap.NewNop(),
	}
	for i := range opts {
		opts[i](o)
	}
	return o
}

func NewQuery(node Node, c *cache.Cache, opts ...Option) *Query {
	o := newOptions(opts)
	return &Query{
		node:      node,
		cache:     c,
		factoryID: o.factoryID,
		logger:    o.logger,
	}
}

// FactoryID returns the account id of the configured wallet factory.
func (q *Query) FactoryID() string {
	return q.factoryID
}

func observe(method string) *prometheus.Timer {
	return prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		queryTimeHistogramVec.WithLabelValues(method).Observe(v)
	}))
}

// view runs a cached call_function and decodes its JSON result into dest.
func (q *Query) view(ctx context.Context, contractID, method string, args any, dest any) error {
	var argsJSON []byte
	if args != nil {
		var err error
		if argsJSON, err = json.Marshal(args); err != nil {
			return errors.Wrapf(err, "encode %s args", method)
		}
	}
	key := cache.ViewFunctionKey(contractID, method, argsJSON)
	data, err := q.cache.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
		return q.node.CallFunction(ctx, contractID, method, argsJSON)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrapf(err, "decode %s result", method)
	}
	return nil
}

func (q *Query) WalletInfo(ctx context.Context, walletID string) (core.WalletInfo, error) {
	defer observe("get_wallet_info").ObserveDuration()
	var info core.WalletInfo
	if err := q.view(ctx, walletID, "get_wallet_info", nil, &info); err != nil {
		return core.WalletInfo{}, err
	}
	return info, nil
}

func (q *Query) Members(ctx context.Context, walletID string) ([]string, error) {
	defer observe("get_members").ObserveDuration()
	var members []string
	if err := q.view(ctx, walletID, "get_members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// Requests returns all pending requests of the wallet.
func (q *Query) Requests(ctx context.Context, walletID string) ([]core.Request, error) {
	defer observe("get_requests").ObserveDuration()
	var requests []core.Request
	if err := q.view(ctx, walletID, "get_requests", nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

type requestIDArgs struct {
	RequestID uint64 `json:"request_id"`
}

// Request returns a single request. A request the contract doesn't know about
// (never created, executed or deleted) is reported as core.NotFoundError.
func (q *Query) Request(ctx context.Context, walletID string, id uint64) (core.Request, error) {
	defer observe("get_request").ObserveDuration()
	var request *core.Request
	if err := q.view(ctx, walletID, "get_request", requestIDArgs{RequestID: id}, &request); err != nil {
		return core.Request{}, err
	}
	if request == nil {
		return core.Request{}, &core.NotFoundError{Entity: "request", ID: strconv.FormatUint(id, 10)}
	}
	return *request, nil
}

func (q *Query) NumConfirmations(ctx context.Context, walletID string) (uint32, error) {
	defer observe("get_num_confirmations").ObserveDuration()
	var n uint32
	if err := q.view(ctx, walletID, "get_num_confirmations", nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// RequestNonce returns the id the next created request gets.
func (q *Query) RequestNonce(ctx context.Context, walletID string) (uint64, error) {
	defer observe("get_request_nonce").ObserveDuration()
	var nonce uint64
	if err := q.view(ctx, walletID, "get_request_nonce", nil, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Account returns the cached view_account state.
func (q *Query) Account(ctx context.Context, accountID string) (rpc.AccountView, error) {
	defer observe("view_account").ObserveDuration()
	data, err := q.cache.Get(ctx, cache.ViewAccountKey(accountID), func(ctx context.Context) ([]byte, error) {
		return q.node.ViewAccountRaw(ctx, accountID)
	})
	if err != nil {
		return rpc.AccountView{}, err
	}
	var view rpc.AccountView
	if err := json.Unmarshal(data, &view); err != nil {
		return rpc.AccountView{}, errors.Wrap(err, "decode view_account result")
	}
	return view, nil
}

// Balance returns the native balance of the account in yoctoNEAR.
func (q *Query) Balance(ctx context.Context, accountID string) (string, error) {
	view, err := q.Account(ctx, accountID)
	if err != nil {
		return "", err
	}
	return view.Amount, nil
}

// AccountExists reports false only when the node says the account is unknown.
// Any other failure, including timeouts and HTTP errors, is returned as is.
func (q *Query) AccountExists(ctx context.Context, accountID string) (bool, error) {
	_, err := q.Account(ctx, accountID)
	if err == nil {
		return true, nil
	}
	if rpc.IsUnknownAccount(err) {
		return false, nil
	}
	q.logger.Warn("failed to check account existence",
		zap.String("account", accountID),
		zap.Error(err))
	return false, err
}

// FactoryHasCode reports whether the factory holds the wallet code it deploys.
func (q *Query) FactoryHasCode(ctx context.Context) (bool, error) {
	defer observe("has_code").ObserveDuration()
	var ok bool
	if err := q.view(ctx, q.factoryID, "has_code", nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// FactoryWalletCount returns the number of wallets created by the factory.
func (q *Query) FactoryWalletCount(ctx context.Context) (uint64, error) {
	defer observe("get_wallet_count").ObserveDuration()
	var n uint64
	if err := q.view(ctx, q.factoryID, "get_wallet_count", nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (q *Query) FactoryOwner(ctx context.Context) (string, error) {
	defer observe("get_owner").ObserveDuration()
	var owner string
	if err := q.view(ctx, q.factoryID, "get_owner", nil, &owner); err != nil {
		return "", err
	}
	return owner, nil
}
