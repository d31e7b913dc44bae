package domain

import "context"

type ItemFailure[T any] struct {
	Index int
	Item  T
	Err   error
}

// Outcome keeps the successful results in input order next to the items that failed.
type Outcome[T, R any] struct {
	Succeeded []R
	Failed    []ItemFailure[T]
	Cancelled bool
}

func (o Outcome[T, R]) Total() int {
	return len(o.Succeeded) + len(o.Failed)
}

// ProcessAll runs fn over items sequentially and keeps going past per-item errors.
// A cancelled context marks every remaining item as failed with the context error.
func ProcessAll[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, index int, item T) (R, error)) Outcome[T, R] {
	out := Outcome[T, R]{
		Succeeded: make([]R, 0, len(items)),
	}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			out.Cancelled = true
			for j := i; j < len(items); j++ {
				out.Failed = append(out.Failed, ItemFailure[T]{Index: j, Item: items[j], Err: err})
			}
			return out
		}

		result, err := fn(ctx, i, item)
		if err != nil {
			out.Failed = append(out.Failed, ItemFailure[T]{Index: i, Item: item, Err: err})
			continue
		}
		out.Succeeded = append(out.Succeeded, result)
	}
	return out
}
