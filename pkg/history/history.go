// Package history reads the transaction history of an account from the nearblocks indexer.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	ht "github.com/ogen-go/ogen/http"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultLimit    = 25
	defaultAttempts = 3
)

type endpoints struct {
	api      string
	explorer string
}

var networks = map[string]endpoints{
	"testnet": {api: "https://api-testnet.nearblocks.io/v1", explorer: "https://testnet.nearblocks.io"},
	"mainnet": {api: "https://api.nearblocks.io/v1", explorer: "https://nearblocks.io"},
}

// Item is a transaction the account took part in.
type Item struct {
	Hash     string `json:"hash" yaml:"hash"`
	Signer   string `json:"signer" yaml:"signer"`
	Receiver string `json:"receiver" yaml:"receiver"`
	// BlockTimestamp is in milliseconds since the epoch.
	BlockTimestamp int64 `json:"block_timestamp" yaml:"block_timestamp"`
	// Deposit is the total attached deposit in yoctoNEAR.
	Deposit    string `json:"deposit" yaml:"deposit"`
	Status     bool   `json:"status" yaml:"status"`
	MethodName string `json:"method_name,omitempty" yaml:"method_name,omitempty"`
	// ExplorerURL points to the transaction page of the block explorer.
	ExplorerURL string `json:"explorer_url" yaml:"explorer_url"`
}

type Client struct {
	endpoints  endpoints
	httpClient ht.Client
	attempts   uint
	delay      time.Duration
	logger     *zap.Logger
}

type Options struct {
	httpClient ht.Client
	endpoints  *endpoints
	attempts   uint
	delay      time.Duration
	logger     *zap.Logger
}

type Option func(o *Options)

func WithHTTPClient(c ht.Client) Option {
	return func(o *Options) {
		o.httpClient = c
	}
}

// WithEndpoints overrides the indexer API and explorer base URLs of the network.
func WithEndpoints(apiURL, explorerURL string) Option {
	return func(o *Options) {
		o.endpoints = &endpoints{api: strings.TrimRight(apiURL, "/"), explorer: strings.TrimRight(explorerURL, "/")}
	}
}

// WithRetries sets how many times a request is attempted and the delay between attempts.
func WithRetries(attempts uint, delay time.Duration) Option {
	return func(o *Options) {
		o.attempts = attempts
		o.delay = delay
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

func NewClient(network string, opts ...Option) (*Client, error) {
	o := &Options{
		httpClient: http.DefaultClient,
		attempts:   defaultAttempts,
		delay:      200 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	e, ok := networks[network]
	if o.endpoints != nil {
		e, ok = *o.endpoints, true
	}
	if !ok {
		return nil, fmt.Errorf("unknown network %q", network)
	}
	return &Client{
		endpoints:  e,
		httpClient: o.httpClient,
		attempts:   o.attempts,
		delay:      o.delay,
		logger:     o.logger,
	}, nil
}

// StatusError is returned when the indexer responds with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nearblocks responded with status %d", e.StatusCode)
}

func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// Transactions returns the latest transactions of the account, newest first.
func (c *Client) Transactions(ctx context.Context, accountID string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	u := fmt.Sprintf("%s/account/%s/txns?%s", c.endpoints.api, url.PathEscape(accountID), url.Values{
		"limit": []string{strconv.Itoa(limit)},
		"order": []string{"desc"},
	}.Encode())

	var page txnsPage
	err := retry.Do(func() error {
		var err error
		page, err = c.fetch(ctx, u)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying nearblocks request",
				zap.String("account", accountID),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	txns := page.Txns
	if txns == nil {
		txns = page.Data
	}
	items := make([]Item, 0, len(txns))
	for _, tx := range txns {
		item, err := c.convert(tx)
		if err != nil {
			return nil, errors.Wrapf(err, "transaction %s", tx.TransactionHash)
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) fetch(ctx context.Context, u string) (txnsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return txnsPage{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return txnsPage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return txnsPage{}, &StatusError{StatusCode: resp.StatusCode}
	}
	var page txnsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return txnsPage{}, errors.Wrap(err, "decode nearblocks response")
	}
	return page, nil
}

type txnsPage struct {
	Txns []txn `json:"txns"`
	// Data is used by older API versions.
	Data []txn `json:"data"`
}

type txn struct {
	TransactionHash      string          `json:"transaction_hash"`
	SignerAccountID      string          `json:"signer_account_id"`
	PredecessorAccountID string          `json:"predecessor_account_id"`
	ReceiverAccountID    string          `json:"receiver_account_id"`
	BlockTimestamp       json.RawMessage `json:"block_timestamp"`
	ActionsAgg           *struct {
		Deposit json.RawMessage `json:"deposit"`
	} `json:"actions_agg"`
	OutcomesAgg *struct {
		Status *bool `json:"status"`
	} `json:"outcomes_agg"`
	Actions []struct {
		Method *string `json:"method"`
	} `json:"actions"`
}

func (c *Client) convert(tx txn) (Item, error) {
	item := Item{
		Hash:        tx.TransactionHash,
		Signer:      tx.SignerAccountID,
		Receiver:    tx.ReceiverAccountID,
		Deposit:     "0",
		Status:      true,
		ExplorerURL: c.endpoints.explorer + "/txns/" + tx.TransactionHash,
	}
	if item.Signer == "" {
		item.Signer = tx.PredecessorAccountID
	}
	if ts := unquote(tx.BlockTimestamp); ts != "" {
		ns, err := decimal.NewFromString(ts)
		if err != nil {
			return Item{}, errors.Wrap(err, "block_timestamp")
		}
		item.BlockTimestamp = ns.Div(decimal.NewFromInt(int64(time.Millisecond))).Floor().IntPart()
	}
	if tx.ActionsAgg != nil {
		if d := unquote(tx.ActionsAgg.Deposit); d != "" {
			deposit, err := decimal.NewFromString(d)
			if err != nil {
				return Item{}, errors.Wrap(err, "deposit")
			}
			// the indexer reports large deposits as floats in exponent notation
			item.Deposit = deposit.Truncate(0).String()
		}
	}
	if tx.OutcomesAgg != nil && tx.OutcomesAgg.Status != nil {
		item.Status = *tx.OutcomesAgg.Status
	}
	if len(tx.Actions) > 0 && tx.Actions[0].Method != nil {
		item.MethodName = *tx.Actions[0].Method
	}
	return item, nil
}

func unquote(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
