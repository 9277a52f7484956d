/*
store.go - Transaction boundary shared by every store implementation

PURPOSE:
  A decision that reads state and then writes based on it must see no
  interleaved writes. Stores expose WithTx so the caller can put the read,
  the decision and the write inside one unit.

CONTRACT:
  - fn returning an error rolls back; nil commits
  - a panic inside fn rolls back and re-panics
  - the S handed to fn is only valid during fn

IMPLEMENTATIONS:
  - store/memory:   copy-on-begin, restored on error
  - store/sqlite:   database/sql transaction
  - store/postgres: pgx transaction

SEE ALSO:
  - benefit/store.go: The benefit Store these transactions run against
*/
package generic

import "context"

// Transactional executes fn within a transaction over S.
type Transactional[S any] interface {
	WithTx(ctx context.Context, fn func(S) error) error
}

// Retry calls fn until it succeeds, returns a non-retryable error, or
// attempts are exhausted. The last error is returned.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
	}
	return err
}
