package service

import "context"

// TxRunner executes fn as one atomic unit. The postgres runner opens a
// transaction and carries it in the context for the stores to join; the
// default passthrough suits the memory stores, whose single-lock compare-and-
// swap already commits atomically.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
