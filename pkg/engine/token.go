package engine

import "context"

// CancellationToken is handed down a step tree at creation time and polled at
// the executor's checkpoints. Cancelling it never interrupts a running action
// directly; the action only sees its context cancelled.
type CancellationToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewCancellationToken() *CancellationToken {
	ctx, cancel := context.WithCancel(context.Background())

	return &CancellationToken{ctx: ctx, cancel: cancel}
}

// Cancel is idempotent.
func (t *CancellationToken) Cancel() {
	t.cancel()
}

func (t *CancellationToken) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Done is closed once the token is cancelled.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.ctx.Done()
}

// bind returns a child of ctx that is also cancelled with the token.
func (t *CancellationToken) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(t.ctx, cancel)

	return bound, func() {
		stop()
		cancel()
	}
}
