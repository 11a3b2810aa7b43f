package signer

import (
	"context"
	"io"
	"sync"

	"github.com/go-faster/errors"
)

// DryRun prints every transaction it receives as a JSON line instead of submitting it.
// The returned Outcome has no hash.
type DryRun struct {
	mu sync.Mutex
	w  io.Writer
}

func NewDryRun(w io.Writer) *DryRun {
	return &DryRun{w: w}
}

func (d *DryRun) SignAndSendTransaction(ctx context.Context, tx Transaction) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	bs, err := tx.MarshalJSON()
	if err != nil {
		return Outcome{}, errors.Wrap(err, "encode transaction")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.w.Write(append(bs, '\n')); err != nil {
		return Outcome{}, err
	}
	return Outcome{Raw: bs}, nil
}
