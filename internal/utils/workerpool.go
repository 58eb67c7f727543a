package utils

import (
	"context"
	"sync"
)

// ParallelForEach executes a function for each item in parallel.
// The returned slice holds the error of each item at its index.
func ParallelForEach[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) []error {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	errors := make([]error, len(items))
	taskChan := make(chan int, len(items))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-taskChan:
					if !ok {
						return
					}
					// each index is written by exactly one worker
					errors[idx] = fn(ctx, items[idx])
				}
			}
		}()
	}

	for i := range items {
		select {
		case <-ctx.Done():
			close(taskChan)
			wg.Wait()
			return markCanceled(ctx, errors)
		case taskChan <- i:
		}
	}

	close(taskChan)
	wg.Wait()

	if ctx.Err() != nil {
		return markCanceled(ctx, errors)
	}
	return errors
}

// markCanceled fills unprocessed slots with the context error so that callers
// never mistake a skipped item for a success.
func markCanceled(ctx context.Context, errs []error) []error {
	for i := range errs {
		if errs[i] == nil {
			errs[i] = ctx.Err()
		}
	}
	return errs
}

// FirstError returns the first non-nil error from a slice of errors
func FirstError(errors []error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

// CollectErrors collects all non-nil errors from a slice
func CollectErrors(errors []error) []error {
	var result []error
	for _, err := range errors {
		if err != nil {
			result = append(result, err)
		}
	}
	return result
}
