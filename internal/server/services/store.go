package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
)

// DefaultStoreTimeout bounds a store call when none is configured.
const DefaultStoreTimeout = 3 * time.Second

// callStore runs fn with a bounded deadline and turns timeouts and
// connection failures into common.ErrStoreUnavailable.
func callStore[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(ctx)
	return v, storeErr(err)
}

func callStoreErr(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	_, err := callStore(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func storeErr(err error) error {
	if err == nil || errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	var netErr net.Error
	if dbx.IsUnavailable(err) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return err
}
