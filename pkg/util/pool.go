package util

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many blocking calls run at once. Callers wait for their own call
// only; other goroutines keep accepting work.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewPool(workerLimit int) *Pool {
	if workerLimit <= 0 {
		workerLimit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workerLimit))}
}

// Do runs fn on a pool slot and waits for it. If ctx ends while waiting for a slot,
// fn is not run. A panic in fn is returned as an error.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.wg.Add(1)
	errCh := make(chan error, 1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("panic: %v", r)
			}
		}()
		errCh <- fn(ctx)
	}()

	return <-errCh
}

// Wait blocks until every started call has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
