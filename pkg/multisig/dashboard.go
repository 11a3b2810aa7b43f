package multisig

import (
	"context"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/stream"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arnac-io/nearmultisig/pkg/core"
)

// maxGoroutines bounds the number of concurrent view calls of a single fan-out.
const maxGoroutines = 5

// Dashboard is everything the wallet page shows. Parts that failed to load are left zero.
type Dashboard struct {
	WalletID string
	Info     core.WalletInfo
	Requests []core.Request
	// Balance is in yoctoNEAR.
	Balance string
}

// Dashboard loads wallet info, pending requests and the balance concurrently.
// A failing part doesn't cancel the others: the partially filled Dashboard is returned
// together with the combined error of the failed parts.
func (q *Query) Dashboard(ctx context.Context, walletID string) (*Dashboard, error) {
	defer observe("dashboard").ObserveDuration()
	var (
		d                          = Dashboard{WalletID: walletID}
		infoErr, requestsErr, bErr error
		wg                         conc.WaitGroup
	)
	wg.Go(func() {
		d.Info, infoErr = q.WalletInfo(ctx, walletID)
	})
	wg.Go(func() {
		d.Requests, requestsErr = q.Requests(ctx, walletID)
	})
	wg.Go(func() {
		d.Balance, bErr = q.Balance(ctx, walletID)
	})
	wg.Wait()

	err := multierr.Combine(infoErr, requestsErr, bErr)
	if err != nil {
		q.logger.Warn("dashboard partially loaded",
			zap.String("wallet", walletID),
			zap.Error(err))
	}
	return &d, err
}

// RequestResult is the outcome of loading one request.
type RequestResult struct {
	ID      uint64
	Request core.Request
	Err     error
}

// RequestsByIDs loads the given requests concurrently. Results come back in the order of ids,
// each carrying its own error. Requests that don't exist carry core.NotFoundError.
func (q *Query) RequestsByIDs(ctx context.Context, walletID string, ids []uint64) []RequestResult {
	results := make([]RequestResult, 0, len(ids))
	s := stream.New().WithMaxGoroutines(maxGoroutines)
	for _, id := range ids {
		id := id
		s.Go(func() stream.Callback {
			request, err := q.Request(ctx, walletID, id)
			// callbacks run one at a time in submission order
			return func() {
				results = append(results, RequestResult{ID: id, Request: request, Err: err})
			}
		})
	}
	s.Wait()
	return results
}
