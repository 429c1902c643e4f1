// Package docstoretest provides store doubles for tests of packages built on docstore.
package docstoretest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
)

// FaultyStore wraps a Store and injects failures or latency for paths under chosen prefixes.
// It also counts calls per operation. Used to exercise partial-failure handling.
type FaultyStore struct {
	docstore.Store

	mu          sync.Mutex
	writeFaults map[string]error
	readFaults  map[string]error
	delays      map[string]time.Duration
	calls       map[string]int
}

func NewFaultyStore(inner docstore.Store) *FaultyStore {
	return &FaultyStore{
		Store:       inner,
		writeFaults: map[string]error{},
		readFaults:  map[string]error{},
		delays:      map[string]time.Duration{},
		calls:       map[string]int{},
	}
}

// FailWrites makes Set, Patch, Remove and Transaction fail with err for paths under prefix.
func (f *FaultyStore) FailWrites(prefix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeFaults[strings.Trim(prefix, "/")] = err
}

// FailReads makes Get and RangeQuery fail with err for paths under prefix.
func (f *FaultyStore) FailReads(prefix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readFaults[strings.Trim(prefix, "/")] = err
}

// Delay holds every call touching prefix for d, or until the context ends.
func (f *FaultyStore) Delay(prefix string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[strings.Trim(prefix, "/")] = d
}

// Calls returns how many times op ("Get", "Patch", ...) was invoked.
func (f *FaultyStore) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func under(path, prefix string) bool {
	path = strings.Trim(path, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (f *FaultyStore) check(ctx context.Context, op string, faults map[string]error, paths ...string) error {
	f.mu.Lock()
	f.calls[op]++
	var delay time.Duration
	var fault error
	for _, path := range paths {
		for prefix, d := range f.delays {
			if under(path, prefix) && d > delay {
				delay = d
			}
		}
		for prefix, err := range faults {
			if fault == nil && under(path, prefix) {
				fault = err
			}
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fault
}

func (f *FaultyStore) Get(ctx context.Context, path string) (any, error) {
	if err := f.check(ctx, "Get", f.readFaults, path); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, path)
}

func (f *FaultyStore) Set(ctx context.Context, path string, value any) error {
	if err := f.check(ctx, "Set", f.writeFaults, path); err != nil {
		return err
	}
	return f.Store.Set(ctx, path, value)
}

func (f *FaultyStore) Patch(ctx context.Context, updates map[string]any) error {
	paths := make([]string, 0, len(updates))
	for path := range updates {
		paths = append(paths, path)
	}
	if err := f.check(ctx, "Patch", f.writeFaults, paths...); err != nil {
		return err
	}
	return f.Store.Patch(ctx, updates)
}

func (f *FaultyStore) Remove(ctx context.Context, path string) error {
	if err := f.check(ctx, "Remove", f.writeFaults, path); err != nil {
		return err
	}
	return f.Store.Remove(ctx, path)
}

func (f *FaultyStore) RangeQuery(ctx context.Context, path string, q docstore.Query) ([]docstore.Entry, error) {
	if err := f.check(ctx, "RangeQuery", f.readFaults, path); err != nil {
		return nil, err
	}
	return f.Store.RangeQuery(ctx, path, q)
}

func (f *FaultyStore) Transaction(ctx context.Context, path string, fn docstore.TxFunc) (any, error) {
	if err := f.check(ctx, "Transaction", f.writeFaults, path); err != nil {
		return nil, err
	}
	return f.Store.Transaction(ctx, path, fn)
}
