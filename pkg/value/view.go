// Package value resolves property values over two views of a
// configuration: the defaults declared by the schema and the live store
// holding what was set or loaded.
package value

import (
	"maps"
	"sync"

	"github.com/bfv/configs/pkg/schema"
)

// View is a read-only view of property values.
type View interface {
	Lookup(name string) (any, bool)
}

// MapStore is the live store of an instance. It is safe for concurrent use.
type MapStore struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewMapStore returns a store holding a copy of initial.
func NewMapStore(initial map[string]any) *MapStore {
	s := &MapStore{m: make(map[string]any, len(initial))}
	for k, v := range initial {
		s.m[k] = Clone(v)
	}
	return s
}

// Lookup returns a copy of the stored value of name. Changing it does not
// change the store.
func (s *MapStore) Lookup(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[name]
	return Clone(v), ok
}

// Store sets name to v. A nil v removes the value.
func (s *MapStore) Store(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v == nil {
		delete(s.m, name)
		return
	}
	s.m[name] = v
}

// StoreAll applies every value of values at once.
func (s *MapStore) StoreAll(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		if v == nil {
			delete(s.m, k)
			continue
		}
		s.m[k] = v
	}
}

// Replace swaps the whole content of the store.
func (s *MapStore) Replace(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = maps.Clone(values)
	if s.m == nil {
		s.m = make(map[string]any)
	}
}

// Snapshot returns a deep copy of the stored values.
func (s *MapStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.m))
	for k, v := range s.m {
		out[k] = Clone(v)
	}
	return out
}

// DefaultsView serves the defaults of a class schema. Every read returns a
// fresh copy, so callers cannot alter the schema or the live store through
// it.
type DefaultsView struct {
	class *schema.ConfigClassSchema
}

// NewDefaults returns the defaults view of class.
func NewDefaults(class *schema.ConfigClassSchema) *DefaultsView {
	return &DefaultsView{class: class}
}

// Lookup returns the default of name, following DefaultFrom references.
func (d *DefaultsView) Lookup(name string) (any, bool) {
	p, ok := d.class.Property(name)
	// Compile rejects cycles; the bound guards unchecked schemas.
	for hops := 0; ok && hops <= len(d.class.Properties); hops++ {
		if p.DefaultFrom == "" {
			if p.Default == nil {
				return nil, false
			}
			return Clone(p.Default), true
		}
		p, ok = d.class.Property(p.DefaultFrom)
	}
	return nil, false
}

// Resolve returns the live value of prop, or its default when the live
// view holds none.
func Resolve(prop *schema.PropertySchema, live, defaults View) (any, bool) {
	if v, ok := live.Lookup(prop.Name); ok && v != nil {
		return v, true
	}
	return defaults.Lookup(prop.Name)
}

// Clone deep copies the canonical value forms: maps, lists and byte slices.
func Clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Clone(e)
		}
		return out
	case []byte:
		return append([]byte(nil), x...)
	}
	return v
}
