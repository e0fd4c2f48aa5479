package shell

import (
	"context"
	"time"
)

// Hook observes every command dispatched through an Instrumented executor.
//
// Before may return a derived context (for example one carrying a span);
// that context is passed to the wrapped executor and to After.
type Hook interface {
	Before(ctx context.Context, tokens []string) context.Context
	After(ctx context.Context, tokens []string, elapsed time.Duration, err error)
}

// Instrumented wraps an Executor and notifies hooks around each call.
type Instrumented struct {
	Next  Executor
	Hooks []Hook
	Now   func() time.Time
}

// Instrument wraps next with the given hooks. Nil hooks are skipped.
func Instrument(next Executor, hooks ...Hook) *Instrumented {
	live := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			live = append(live, h)
		}
	}
	return &Instrumented{Next: next, Hooks: live, Now: time.Now}
}

// Execute runs the wrapped executor between Before and After hook calls.
// Hooks run in order before the command and in reverse order after it.
func (e *Instrumented) Execute(ctx context.Context, tokens []string, timeout time.Duration, observe LineObserver) error {
	now := e.Now
	if now == nil {
		now = time.Now
	}

	ctxs := make([]context.Context, len(e.Hooks))
	for i, h := range e.Hooks {
		ctx = h.Before(ctx, tokens)
		ctxs[i] = ctx
	}

	start := now()
	err := e.Next.Execute(ctx, tokens, timeout, observe)
	elapsed := now().Sub(start)

	for i := len(e.Hooks) - 1; i >= 0; i-- {
		e.Hooks[i].After(ctxs[i], tokens, elapsed, err)
	}
	return err
}
