package config

import (
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/arnac-io/nearmultisig/pkg/core"
	"github.com/arnac-io/nearmultisig/pkg/rpc"
)

type Config struct {
	NEAR struct {
		Network  string        `env:"NEAR_NETWORK" envDefault:"testnet"`
		NodeURL  string        `env:"NEAR_NODE_URL"`
		APIKey   string        `env:"NEAR_RPC_API_KEY"`
		Finality string        `env:"NEAR_FINALITY" envDefault:"final"`
		Timeout  time.Duration `env:"RPC_TIMEOUT" envDefault:"10s"`
		// RateLimit is the number of RPC requests per second, 0 disables limiting.
		RateLimit float64 `env:"RPC_RATE_LIMIT" envDefault:"0"`
	}
	Multisig struct {
		FactoryID string        `env:"FACTORY_CONTRACT_ID" envDefault:"iron-wallet.testnet"`
		CacheTTL  time.Duration `env:"VIEW_CACHE_TTL" envDefault:"10s"`
		// Wallets are shown by commands run without an explicit wallet id.
		Wallets accountsList `env:"WALLETS"`
	}
	App struct {
		LogLevel  string `env:"LOG_LEVEL" envDefault:"INFO"`
		SentryDSN string `env:"SENTRY_DSN"`
	}
}

type accountsList []string

var nodeURLs = map[string]string{
	"testnet": rpc.TestnetNodeURL,
	"mainnet": rpc.MainnetNodeURL,
}

func Load() Config {
	c, err := parse(env.Options{})
	if err != nil {
		log.Panicf("[‼️  Config parsing failed] %+v\n", err)
	}
	return c
}

func parse(opts env.Options) (Config, error) {
	var c Config
	if err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(accountsList{}): func(v string) (interface{}, error) {
			var accs accountsList
			for _, s := range strings.Split(v, ",") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				if !core.IsValidAccountID(s) {
					return nil, fmt.Errorf("invalid account id %q", s)
				}
				accs = append(accs, s)
			}
			return accs, nil
		}}, opts); err != nil {
		return Config{}, err
	}
	if c.NEAR.NodeURL == "" {
		url, ok := nodeURLs[c.NEAR.Network]
		if !ok {
			return Config{}, fmt.Errorf("unknown network %q, set NEAR_NODE_URL", c.NEAR.Network)
		}
		c.NEAR.NodeURL = url
	}
	switch rpc.Finality(c.NEAR.Finality) {
	case rpc.FinalityFinal, rpc.FinalityOptimistic:
	default:
		return Config{}, fmt.Errorf("unknown finality %q", c.NEAR.Finality)
	}
	if !core.IsValidAccountID(c.Multisig.FactoryID) {
		return Config{}, fmt.Errorf("invalid factory account id %q", c.Multisig.FactoryID)
	}
	return c, nil
}
