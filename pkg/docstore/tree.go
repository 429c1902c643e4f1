package docstore

import (
	"encoding/json"
	"fmt"
)

// toTree converts a value into its plain JSON tree form.
func toTree(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			if err := ValidateKey(k); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
			}
			converted, err := toTree(child)
			if err != nil {
				return nil, err
			}
			if converted != nil {
				out[k] = converted
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			converted, err := toTree(child)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value of type %T is not JSON encodable: %w", value, err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return toTree(tree)
}

// deepCopy copies a JSON tree so callers never share memory with the store.
func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}

// lookup walks the tree and returns the node at parts.
func lookup(root any, parts []string) (any, bool) {
	node := root
	for _, part := range parts {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// setIn writes value at parts below root, creating intermediate objects and replacing
// non-object intermediates. A nil value removes the node and prunes emptied parents.
// It returns the new root, which is nil when the whole tree became empty.
func setIn(root any, parts []string, value any) any {
	if len(parts) == 0 {
		return value
	}

	m, ok := root.(map[string]any)
	if !ok {
		if value == nil {
			return root
		}
		m = map[string]any{}
	}

	child := setIn(m[parts[0]], parts[1:], value)
	if child == nil {
		delete(m, parts[0])
	} else {
		m[parts[0]] = child
	}

	if len(m) == 0 {
		return nil
	}
	return m
}

// Decode converts a stored value into out (a pointer) through encoding/json.
func Decode(value any, out any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Children returns the entries of an object node, unordered. Non-objects have no children.
func Children(value any) []Entry {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	entries := make([]Entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return entries
}

// Field reads a (possibly nested, "/"-separated) child field of a document.
func Field(doc any, field string) any {
	parts, err := SplitPath(field)
	if err != nil {
		return nil
	}
	v, _ := lookup(doc, parts)
	return v
}
