// Package async provides panic-safe goroutine helpers for fire-and-forget
// work such as change-feed publication and audit writes.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/campuskit/campus/pkg/observability"
)

// SafeGo executes a function in a goroutine with context cancellation,
// panic recovery, timeout enforcement and error logging.
//
// Use this instead of bare `go func()` for background work that must not
// crash the process or leak:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "feed publish", func(ctx context.Context) error {
//	    return feed.Publish(ctx, event)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  taskName,
					"panic": fmt.Sprintf("%v", r),
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, logger, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
