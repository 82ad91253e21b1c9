package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/domain"
)

const defaultConflictRetries = 3

// retryOnConflict re-runs fn while the store reports a lost version check.
// Each attempt must re-read the records it writes.
func retryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %d attempts lost to concurrent writers", domain.ErrBusy, attempts)
}
