package agents

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKnowledge is returned when reading a key that was never set.
	ErrMissingKnowledge = errors.New("missing knowledge")
	// ErrKnowledgeType is returned when a value has the wrong type.
	ErrKnowledgeType = errors.New("knowledge has wrong type")
)

// Knowledge is an agent's private key/value store.
type Knowledge map[string]any

// Set stores v under key.
func (k Knowledge) Set(key string, v any) { k[key] = v }

// Has reports whether key is set.
func (k Knowledge) Has(key string) bool {
	_, ok := k[key]
	return ok
}

// Delete removes key.
func (k Knowledge) Delete(key string) { delete(k, key) }

// Get returns the raw value under key.
func (k Knowledge) Get(key string) (any, error) {
	v, ok := k[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingKnowledge, key)
	}
	return v, nil
}

// Float returns a numeric value as float64.
func (k Knowledge) Float(key string) (float64, error) {
	v, err := k.Get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %s is %T", ErrKnowledgeType, key, v)
}

// Int returns an integer value.
func (k Knowledge) Int(key string) (int64, error) {
	v, err := k.Get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("%w: %s is %T", ErrKnowledgeType, key, v)
}

// Bool returns a boolean value.
func (k Knowledge) Bool(key string) (bool, error) {
	v, err := k.Get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T", ErrKnowledgeType, key, v)
	}
	return b, nil
}

// Text returns a string value.
func (k Knowledge) Text(key string) (string, error) {
	v, err := k.Get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrKnowledgeType, key, v)
	}
	return s, nil
}

// BoolOr returns the boolean under key, or def when missing or mistyped.
func (k Knowledge) BoolOr(key string, def bool) bool {
	if b, err := k.Bool(key); err == nil {
		return b
	}
	return def
}

// FloatOr returns the number under key, or def when missing or mistyped.
func (k Knowledge) FloatOr(key string, def float64) float64 {
	if f, err := k.Float(key); err == nil {
		return f
	}
	return def
}
