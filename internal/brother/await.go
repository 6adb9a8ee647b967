package brother

import (
	"context"
	"sync"
)

// Call is any facade operation with its arguments already bound, e.g.
// client.FindPrinters or func(ok, fail) { client.SetPrinter(p, ok, fail) }.
type Call func(onSuccess SuccessFunc, onError ErrorFunc)

// Result carries the outcome of a single Call.
type Result struct {
	Value any
	Err   error
}

// Go starts call and returns a channel that receives exactly one Result.
// Later callback invocations, if a misbehaving provider makes any, are dropped.
func Go(call Call) <-chan Result {
	ch := make(chan Result, 1)
	var once sync.Once

	call(
		func(v any) {
			once.Do(func() { ch <- Result{Value: v} })
		},
		func(err error) {
			once.Do(func() { ch <- Result{Err: err} })
		},
	)
	return ch
}

// Await runs call and blocks until it completes or ctx is done.
// A cancelled ctx only stops the wait; the native call keeps running.
func Await(ctx context.Context, call Call) (any, error) {
	select {
	case res := <-Go(call):
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
