package repository

import "context"

// TxManager runs a function inside a single transactional unit of
// work. Every status-gated mutation (round start/reveal/reset/finalize,
// kick, transfer, close) executes through it so that "check current
// status" and "write new status" are observed atomically relative to
// other callers.
//
// Implementations carry the transactional handle in the context passed
// to fn; repository calls made with that context join the transaction.
// Nested calls reuse the enclosing transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
