package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// execBatch sends a queued batch of fact writes and drains every result.
// An empty batch is a no-op so change-set appliers can queue unconditionally.
func execBatch(ctx context.Context, batch *pgx.Batch, send func(context.Context, *pgx.Batch) pgx.BatchResults, operation string) (err error) {
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	results := send(ctx, batch)
	defer func() {
		if closeErr := results.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%s batch close: %w", operation, closeErr)
		}
	}()

	for i := 0; i < batch.Len(); i++ {
		if _, err = results.Exec(); err != nil {
			return fmt.Errorf("%s batch statement %d: %w", operation, i, err)
		}
	}

	return nil
}
