package jukebox

import (
	"context"
	"fmt"
	"time"

	"llm-jukebox/internal/silence"
)

// collaboratorGuard runs every call into the media collaborator with the
// standard streams silenced, an optional deadline, and panics turned into
// errors.
type collaboratorGuard struct {
	timeout time.Duration
}

func (g collaboratorGuard) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return silence.Run(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("collaborator panic: %v", r)
			}
		}()
		return fn(ctx)
	})
}
