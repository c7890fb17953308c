package services

import (
	"context"
	"errors"
	"log/slog"

	"ticket-market/internal/apperr"
	"ticket-market/monitoring"
)

// retryOnce runs op and, if it lost an optimistic concurrency race, runs
// it exactly once more. op must re-read whatever it mutates. A second
// conflict is surfaced to the caller.
func retryOnce(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	err := op(ctx)
	if errors.Is(err, apperr.ErrVersionConflict) {
		monitoring.TrackConflict(operation, "retried")
		slog.Info("Version conflict, retrying once", "operation", operation)
		err = op(ctx)
		if errors.Is(err, apperr.ErrVersionConflict) {
			monitoring.TrackConflict(operation, "surfaced")
		}
	}
	return outcome(ctx, err)
}

// outcome turns a deadline or cancellation during a mutation into
// ErrUnknownOutcome: the write may have landed, so the caller has to
// re-read before deciding anything.
func outcome(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindTimeout {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return apperr.ErrUnknownOutcome.Wrap(err)
	}
	return err
}
