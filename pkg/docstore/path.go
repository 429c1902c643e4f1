package docstore

import (
	"fmt"
	"sort"
	"strings"
)

const forbiddenKeyChars = ".#$[]"

// SplitPath splits a slash-separated path into validated segments. Leading and trailing
// slashes are ignored; the empty path is the root and yields no segments.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, "/")
	for _, part := range parts {
		if err := ValidateKey(part); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
		}
	}
	return parts, nil
}

// ValidateKey checks a single path segment.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty segment")
	}
	if strings.ContainsAny(key, forbiddenKeyChars) {
		return fmt.Errorf("segment %q contains one of %q", key, forbiddenKeyChars)
	}
	return nil
}

// Join builds a path from segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

type patchOp struct {
	path  string
	parts []string
	value any
}

// preparePatch validates update paths, rejecting the root, duplicates and any path that is an
// ancestor of another, and returns the operations ordered by path.
func preparePatch(updates map[string]any) ([]patchOp, error) {
	ops := make([]patchOp, 0, len(updates))
	seen := make(map[string]bool, len(updates))
	for path, value := range updates {
		parts, err := SplitPath(path)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: patch cannot target the root", ErrInvalidPath)
		}
		clean := Join(parts...)
		if seen[clean] {
			return nil, fmt.Errorf("%w: %q appears twice", ErrInvalidPath, clean)
		}
		seen[clean] = true

		tree, err := toTree(value)
		if err != nil {
			return nil, fmt.Errorf("patch %q: %w", clean, err)
		}
		ops = append(ops, patchOp{path: clean, parts: parts, value: tree})
	}

	for _, op := range ops {
		for i := 1; i < len(op.parts); i++ {
			if ancestor := Join(op.parts[:i]...); seen[ancestor] {
				return nil, fmt.Errorf("%w: %q is an ancestor of %q", ErrInvalidPath, ancestor, op.path)
			}
		}
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i].path < ops[j].path })
	return ops, nil
}
