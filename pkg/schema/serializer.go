package schema

import (
	"fmt"
	"sync"
)

// Serializer converts a structural value to a scalar key string and back.
type Serializer interface {
	Serialize(v any) (string, error)
	Deserialize(s string) (any, error)
}

// SerializerFuncs adapts a pair of functions to Serializer.
type SerializerFuncs struct {
	SerializeFunc   func(v any) (string, error)
	DeserializeFunc func(s string) (any, error)
}

func (f SerializerFuncs) Serialize(v any) (string, error) {
	if f.SerializeFunc == nil {
		return "", fmt.Errorf("serializer cannot serialize")
	}
	return f.SerializeFunc(v)
}

func (f SerializerFuncs) Deserialize(s string) (any, error) {
	if f.DeserializeFunc == nil {
		return nil, fmt.Errorf("serializer cannot deserialize")
	}
	return f.DeserializeFunc(s)
}

// Serializers is a registry of serializers by type name. It is safe for
// concurrent use.
type Serializers struct {
	mu sync.RWMutex
	m  map[string]Serializer
}

// NewSerializers returns an empty registry.
func NewSerializers() *Serializers {
	return &Serializers{m: make(map[string]Serializer)}
}

// Register adds or replaces the serializer for name.
func (s *Serializers) Register(name string, ser Serializer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[name] = ser
}

// Lookup returns the serializer for name. A nil registry has none.
func (s *Serializers) Lookup(name string) (Serializer, bool) {
	if s == nil || name == "" {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.m[name]
	return ser, ok
}
