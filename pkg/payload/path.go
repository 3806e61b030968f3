package payload

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPath    = errors.New("empty payload path")
	ErrPathConflict = errors.New("payload path crosses a non-object value")
	ErrNilValue     = errors.New("nil payload value")
)

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%q: %w", path, ErrEmptyPath)
		}
	}
	return segments, nil
}

// Set writes v at the dotted path, creating missing intermediate objects.
// The leaf is overwritten unconditionally. Paths that would descend through
// a scalar fail with ErrPathConflict and leave the tree untouched. A nil v
// is rejected with ErrNilValue.
func Set(root *Value, path string, v *Value) error {
	if !root.IsObject() {
		return fmt.Errorf("root: %w", ErrPathConflict)
	}
	if v == nil {
		return fmt.Errorf("%s: %w", path, ErrNilValue)
	}
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	// Validate the whole walk before mutating anything.
	node := root
	depth := 0
	for ; depth < len(segments)-1; depth++ {
		child, ok := node.fields[segments[depth]]
		if !ok {
			break
		}
		if !child.IsObject() {
			return fmt.Errorf("%s: %w", strings.Join(segments[:depth+1], "."), ErrPathConflict)
		}
		node = child
	}

	for ; depth < len(segments)-1; depth++ {
		child := NewObject()
		node.fields[segments[depth]] = child
		node = child
	}
	node.fields[segments[len(segments)-1]] = v
	return nil
}

// SetString is Set for the common text case.
func SetString(root *Value, path, s string) error {
	return Set(root, path, String(s))
}

// Get walks the dotted path and returns def as soon as a segment is missing.
func Get(root *Value, path string, def *Value) *Value {
	segments, err := splitPath(path)
	if err != nil {
		return def
	}
	node := root
	for _, segment := range segments {
		child, ok := node.Field(segment)
		if !ok {
			return def
		}
		node = child
	}
	return node
}

// GetString returns the text at path or def.
func GetString(root *Value, path, def string) string {
	if s, ok := Get(root, path, nil).Text(); ok {
		return s
	}
	return def
}
