package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineLimit fails when the process runs more than limit goroutines.
func GoroutineLimit(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds %d", n, limit)
		}
		return nil
	}
}

// WhenEnabled runs check only while enabled reports true and passes
// otherwise. The admin server uses it to skip the repository probe before a
// connection has been saved.
func WhenEnabled(enabled func() bool, check CheckFunc) CheckFunc {
	return func(ctx context.Context) error {
		if !enabled() {
			return nil
		}
		return check(ctx)
	}
}
