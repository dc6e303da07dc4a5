package oracle

import (
	"context"
	"time"

	"go-codeagent/pkg/models"
)

// Call runs fn under a deadline of timeout (none when zero). A failure while
// ctx is still live is an OracleCallError; a failure caused by ctx is Cancelled.
func Call(ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", models.NewCancelledError(stage, err)
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	raw, err := fn(callCtx)
	if err != nil {
		if ctx.Err() != nil {
			return "", models.NewCancelledError(stage, ctx.Err())
		}
		return "", models.NewOracleCallError(stage, err)
	}
	return raw, nil
}
