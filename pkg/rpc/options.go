package rpc

import (
	"fmt"
	"net/http"
	"time"

	ht "github.com/ogen-go/ogen/http"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	TestnetNodeURL = "https://rpc.testnet.near.org"
	MainnetNodeURL = "https://rpc.mainnet.near.org"
)

// DefaultTimeout bounds a single JSON-RPC call.
const DefaultTimeout = 10 * time.Second

type Finality string

const (
	FinalityFinal      Finality = "final"
	FinalityOptimistic Finality = "optimistic"
)

type Options struct {
	httpClient ht.Client
	logger     *zap.Logger
	timeout    time.Duration
	limiter    *rate.Limiter
	finality   Finality
}

type Option func(o *Options)

// WithHTTPClient configures the client to send requests through c.
func WithHTTPClient(c ht.Client) Option {
	return func(o *Options) {
		o.httpClient = c
	}
}

type clientWithAPIKey struct {
	header string
	next   ht.Client
}

func (c clientWithAPIKey) Do(r *http.Request) (*http.Response, error) {
	r.Header.Set("Authorization", c.header)
	return c.next.Do(r)
}

var _ ht.Client = &clientWithAPIKey{}

// WithAPIKey configures the client to authorize with a bearer token.
// Public NEAR nodes are heavily rate limited, commercial RPC providers hand out API keys.
// Apply it after WithHTTPClient if both are used.
func WithAPIKey(apiKey string) Option {
	return func(o *Options) {
		if apiKey == "" {
			return
		}
		o.httpClient = &clientWithAPIKey{header: fmt.Sprintf("Bearer %s", apiKey), next: o.httpClient}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.timeout = d
	}
}

// WithRateLimit limits the client to perSecond queries with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Options) {
		if perSecond <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithFinality sets the block finality used for queries, "final" by default.
func WithFinality(f Finality) Option {
	return func(o *Options) {
		o.finality = f
	}
}
