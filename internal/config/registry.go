package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Option lookup errors.
var (
	ErrUnknownKey   = errors.New("unknown option key")
	ErrKindMismatch = errors.New("option kind mismatch")
	ErrNotSet       = errors.New("option not set")
)

// Registry declares the options a module understands and their kinds.
type Registry map[string]Kind

// OptionSet resolves option values against a Registry.
type OptionSet struct {
	values   map[string]Value
	registry Registry
}

// Bind returns the OptionSet of values checked against r.
func (r Registry) Bind(values map[string]Value) *OptionSet {
	return &OptionSet{values: values, registry: r}
}

// Unknown returns the keys present in the values but not in the registry, sorted.
func (o *OptionSet) Unknown() []string {
	var keys []string
	for k := range o.values {
		if _, ok := o.registry[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// IsSet reports whether key has a non-null value.
func (o *OptionSet) IsSet(key string) bool {
	v, ok := o.values[key]
	return ok && v.kind != KindNull
}

func (o *OptionSet) lookup(key string, want Kind) (Value, error) {
	declared, ok := o.registry[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if declared != want {
		return Value{}, fmt.Errorf("%w: %s is declared %s, read as %s", ErrKindMismatch, key, declared, want)
	}
	v, ok := o.values[key]
	if !ok || v.kind == KindNull {
		return Value{}, fmt.Errorf("%w: %s", ErrNotSet, key)
	}
	return v, nil
}

// String returns the string option key.
func (o *OptionSet) String(key string) (string, error) {
	v, err := o.lookup(key, KindString)
	if err != nil {
		return "", err
	}
	if v.kind != KindString {
		return "", fmt.Errorf("%w: %s holds %s", ErrKindMismatch, key, v.kind)
	}
	return v.s, nil
}

// Int returns the int option key. An integral float value is accepted.
func (o *OptionSet) Int(key string) (int64, error) {
	v, err := o.lookup(key, KindInt)
	if err != nil {
		return 0, err
	}
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<53 {
			return int64(v.f), nil
		}
	}
	return 0, fmt.Errorf("%w: %s holds %s", ErrKindMismatch, key, v.kind)
}

// Float returns the float option key. An int value is widened.
func (o *OptionSet) Float(key string) (float64, error) {
	v, err := o.lookup(key, KindFloat)
	if err != nil {
		return 0, err
	}
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	}
	return 0, fmt.Errorf("%w: %s holds %s", ErrKindMismatch, key, v.kind)
}
