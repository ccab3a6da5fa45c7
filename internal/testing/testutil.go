// Package testing provides test utilities for groundlink packages.
//
// Using t.Fatal() or t.FailNow() in goroutines causes undefined behavior
// because these methods call runtime.Goexit() which only terminates the
// current goroutine, not the test goroutine. GoroutineTest collects errors
// from background goroutines and reports them from the test goroutine.
package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// GoroutineTest provides safe testing utilities for goroutines.
//
// Example usage:
//
//	gt := testing.NewGoroutineTest(t)
//	defer gt.Wait()
//
//	gt.Go(func() error {
//	    frame := store.SnapshotAll()
//	    if frame.Len() > 50 {
//	        return fmt.Errorf("window grew to %d", frame.Len())
//	    }
//	    return nil
//	})
type GoroutineTest struct {
	t      *testing.T
	wg     sync.WaitGroup
	errors chan error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewGoroutineTest creates a new GoroutineTest helper.
func NewGoroutineTest(t *testing.T) *GoroutineTest {
	return NewGoroutineTestWithTimeout(t, time.Minute)
}

// NewGoroutineTestWithTimeout creates a GoroutineTest whose context expires
// after timeout.
func NewGoroutineTestWithTimeout(t *testing.T, timeout time.Duration) *GoroutineTest {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &GoroutineTest{
		t:      t,
		errors: make(chan error, 100),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go runs fn in a goroutine and collects its error.
func (gt *GoroutineTest) Go(fn func() error) {
	gt.GoWithContext(func(context.Context) error { return fn() })
}

// GoWithContext runs fn with the test context in a goroutine.
func (gt *GoroutineTest) GoWithContext(fn func(ctx context.Context) error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(gt.ctx); err != nil {
			select {
			case gt.errors <- err:
			default:
				gt.t.Logf("error channel full, dropping error: %v", err)
			}
		}
	}()
}

// Wait waits for all goroutines and fails the test if any returned an error.
func (gt *GoroutineTest) Wait() {
	gt.wg.Wait()
	gt.cancel()
	close(gt.errors)

	var errs []error
	for err := range gt.errors {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		gt.t.Errorf("goroutine test failed with %d error(s):", len(errs))
		for i, err := range errs {
			gt.t.Errorf("  [%d] %v", i+1, err)
		}
		gt.t.FailNow()
	}
}

// Context returns the context for this test.
func (gt *GoroutineTest) Context() context.Context {
	return gt.ctx
}

// Cancel cancels the context, signaling goroutines to stop.
func (gt *GoroutineTest) Cancel() {
	gt.cancel()
}

// WithTimeout runs fn and fails if it does not return within timeout.
func WithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("operation timed out after %v", timeout)
	}
}

// Eventually waits for condition to become true.
func Eventually(timeout, interval time.Duration, condition func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return nil
		}
		time.Sleep(interval)
	}
	if condition() {
		return nil
	}
	return fmt.Errorf("condition not met within %v", timeout)
}
