package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	ht "github.com/ogen-go/ogen/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var queryTimeHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "near_rpc_query_seconds",
		Help:    "NEAR JSON-RPC query duration distribution in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	},
	[]string{"request_type", "status"},
)

var tracer = otel.Tracer("github.com/arnac-io/nearmultisig/pkg/rpc")

const (
	requestTypeCallFunction = "call_function"
	requestTypeViewAccount  = "view_account"
)

// AccountView is the result of a view_account query.
type AccountView struct {
	// Amount is the native balance in yoctoNEAR.
	Amount       string `json:"amount"`
	Locked       string `json:"locked"`
	CodeHash     string `json:"code_hash"`
	StorageUsage uint64 `json:"storage_usage"`
	BlockHeight  uint64 `json:"block_height"`
	BlockHash    string `json:"block_hash"`
}

// Client talks to a NEAR node over JSON-RPC 2.0. It never retries: a query is sent once
// and any failure is returned to the caller.
type Client struct {
	url        string
	httpClient ht.Client
	logger     *zap.Logger
	timeout    time.Duration
	limiter    *rate.Limiter
	finality   Finality
	// nextID produces monotonically increasing JSON-RPC request ids.
	nextID atomic.Uint64
}

func NewClient(url string, opts ...Option) *Client {
	options := &Options{
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
		timeout:    DefaultTimeout,
		finality:   FinalityFinal,
	}
	for _, o := range opts {
		o(options)
	}
	return &Client{
		url:        url,
		httpClient: options.httpClient,
		logger:     options.logger,
		timeout:    options.timeout,
		limiter:    options.limiter,
		finality:   options.finality,
	}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

type jsonRPCError struct {
	Name  string `json:"name"`
	Cause struct {
		Name string `json:"name"`
	} `json:"cause"`
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type callFunctionParams struct {
	RequestType string   `json:"request_type"`
	Finality    Finality `json:"finality"`
	AccountID   string   `json:"account_id"`
	MethodName  string   `json:"method_name"`
	ArgsBase64  string   `json:"args_base64"`
}

type viewAccountParams struct {
	RequestType string   `json:"request_type"`
	Finality    Finality `json:"finality"`
	AccountID   string   `json:"account_id"`
}

type callFunctionResult struct {
	Result resultBytes `json:"result"`
	Logs   []string    `json:"logs"`
	// Error is set by nodes that report contract execution failures inside the result.
	Error string `json:"error"`
}

// resultBytes is a byte array encoded as a JSON array of numbers.
type resultBytes []byte

func (b *resultBytes) UnmarshalJSON(data []byte) error {
	var out []byte
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		v, err := d.UInt32()
		if err != nil {
			return err
		}
		if v > 0xff {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out = append(out, byte(v))
		return nil
	})
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// CallFunction runs a read-only contract method. args is the JSON encoded argument object, nil means "{}".
// The returned bytes are the UTF-8 JSON the method returned.
func (c *Client) CallFunction(ctx context.Context, accountID, methodName string, args []byte) ([]byte, error) {
	if args == nil {
		args = []byte("{}")
	}
	params := callFunctionParams{
		RequestType: requestTypeCallFunction,
		Finality:    c.finality,
		AccountID:   accountID,
		MethodName:  methodName,
		ArgsBase64:  base64.StdEncoding.EncodeToString(args),
	}
	raw, err := c.query(ctx, requestTypeCallFunction, params)
	if err != nil {
		return nil, err
	}
	var res callFunctionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrapf(err, "decode %s result", methodName)
	}
	if res.Error != "" {
		return nil, &RPCError{Message: res.Error, Payload: raw}
	}
	return res.Result, nil
}

// ViewAccountRaw returns the view_account result as reported by the node.
func (c *Client) ViewAccountRaw(ctx context.Context, accountID string) (json.RawMessage, error) {
	params := viewAccountParams{
		RequestType: requestTypeViewAccount,
		Finality:    c.finality,
		AccountID:   accountID,
	}
	return c.query(ctx, requestTypeViewAccount, params)
}

// ViewAccount returns the native balance and state of an account.
// A nonexistent account is reported as an RPCError, see IsUnknownAccount.
func (c *Client) ViewAccount(ctx context.Context, accountID string) (AccountView, error) {
	raw, err := c.ViewAccountRaw(ctx, accountID)
	if err != nil {
		return AccountView{}, err
	}
	var view AccountView
	if err := json.Unmarshal(raw, &view); err != nil {
		return AccountView{}, errors.Wrap(err, "decode view_account result")
	}
	return view, nil
}

func (c *Client) query(ctx context.Context, requestType string, params any) (_ json.RawMessage, err error) {
	ctx, span := tracer.Start(ctx, "near.query", trace.WithAttributes(attribute.String("near.request_type", requestType)))
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		queryTimeHistogramVec.WithLabelValues(requestType, status).Observe(time.Since(start).Seconds())
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limit")
		}
	}
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	id := c.nextID.Add(1)
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: "query", Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.convertErr(ctx, callCtx, requestType, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.convertErr(ctx, callCtx, requestType, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("near rpc returned non-2xx status",
			zap.String("request_type", requestType),
			zap.Int("status", resp.StatusCode))
		rpcErr := &RPCError{HTTPStatus: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if json.Valid(payload) {
			rpcErr.Payload = payload
		}
		return nil, rpcErr
	}
	var r jsonRPCResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, errors.Wrap(err, "decode json-rpc response")
	}
	if len(r.Error) > 0 && string(r.Error) != "null" {
		var e jsonRPCError
		_ = json.Unmarshal(r.Error, &e)
		return nil, &RPCError{
			Code:    e.Code,
			Name:    e.Name,
			Message: e.Message,
			Cause:   e.Cause.Name,
			Payload: r.Error,
		}
	}
	c.logger.Debug("near rpc query",
		zap.String("request_type", requestType),
		zap.Uint64("id", id),
		zap.Duration("elapsed", time.Since(start)))
	return r.Result, nil
}

func (c *Client) convertErr(ctx, callCtx context.Context, requestType string, err error) error {
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Method: requestType, Timeout: c.timeout}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Method: requestType, Timeout: c.timeout}
	}
	return errors.Wrap(err, "send json-rpc request")
}
