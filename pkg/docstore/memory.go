package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemoryStore keeps the whole tree in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	root any
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := lookup(s.root, parts)
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(node), nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parts, err := SplitPath(path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("%w: cannot overwrite the root", ErrInvalidPath)
	}
	tree, err := toTree(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = setIn(s.root, parts, tree)
	return nil
}

func (s *MemoryStore) Patch(ctx context.Context, updates map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ops, err := preparePatch(updates)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		s.root = setIn(s.root, op.parts, op.value)
	}
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *MemoryStore) RangeQuery(ctx context.Context, path string, q Query) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	node, _ := lookup(s.root, parts)
	entries := Children(deepCopy(node))
	s.mu.RUnlock()

	return ApplyQuery(entries, q), nil
}

func (s *MemoryStore) Transaction(ctx context.Context, path string, fn TxFunc) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: cannot run a transaction on the root", ErrInvalidPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, _ := lookup(s.root, parts)
	next, err := fn(deepCopy(current))
	if err != nil {
		if errors.Is(err, ErrAbort) {
			return deepCopy(current), err
		}
		return nil, err
	}

	tree, err := toTree(next)
	if err != nil {
		return nil, err
	}
	s.root = setIn(s.root, parts, tree)
	return deepCopy(tree), nil
}
