package chathub

import (
	"context"
	"errors"

	"peerline/backend/internal/storage"
)

// permanent errors are answers from the store, not I/O failures.
func permanent(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrActivePairExists) ||
		errors.Is(err, storage.ErrRoomEnded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// retryOnce runs fn a second time when the first attempt hit a transient
// storage failure.
func retryOnce(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || permanent(err) || ctx.Err() != nil {
		return err
	}
	return fn(ctx)
}

func retryOnceValue[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := retryOnce(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
