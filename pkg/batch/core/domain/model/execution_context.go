package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// ExecutionContext is a goroutine-safe key/value store persisted with job and
// step executions. It tracks whether it has been modified since the last
// ClearDirty so the repository only writes contexts that changed.
type ExecutionContext struct {
	mu    sync.RWMutex
	data  map[string]interface{}
	dirty bool
}

// NewExecutionContext creates an empty, clean ExecutionContext.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{data: make(map[string]interface{})}
}

// NewExecutionContextFrom creates a clean ExecutionContext holding a copy of entries.
func NewExecutionContextFrom(entries map[string]interface{}) *ExecutionContext {
	ec := NewExecutionContext()
	for k, v := range entries {
		ec.data[k] = v
	}
	return ec
}

// Put stores value under key. A nil value removes the key. The context becomes
// dirty only when the stored state actually changes.
func (ec *ExecutionContext) Put(key string, value interface{}) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	old, exists := ec.data[key]
	if value == nil {
		if exists {
			delete(ec.data, key)
			ec.dirty = true
		}
		return
	}
	ec.data[key] = value
	if !exists || !sameValue(old, value) {
		ec.dirty = true
	}
}

// sameValue compares two stored values. Non-comparable values (maps, slices)
// are compared through their JSON encoding.
func sameValue(a, b interface{}) (equal bool) {
	defer func() {
		if recover() != nil {
			aj, errA := json.Marshal(a)
			bj, errB := json.Marshal(b)
			equal = errA == nil && errB == nil && string(aj) == string(bj)
		}
	}()
	return a == b
}

// Remove deletes key, marking the context dirty if it was present.
func (ec *ExecutionContext) Remove(key string) {
	ec.Put(key, nil)
}

// Get returns the raw value stored under key.
func (ec *ExecutionContext) Get(key string) (interface{}, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.data[key]
	return v, ok
}

// ContainsKey reports whether key is present.
func (ec *ExecutionContext) ContainsKey(key string) bool {
	_, ok := ec.Get(key)
	return ok
}

// GetString returns the value under key as a string, or def.
func (ec *ExecutionContext) GetString(key, def string) string {
	v, ok := ec.Get(key)
	if !ok {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// GetInt64 returns the value under key as an int64, or def if absent or not numeric.
// Values decoded from JSON arrive as float64 and are accepted.
func (ec *ExecutionContext) GetInt64(key string, def int64) int64 {
	v, ok := ec.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i
		}
	}
	return def
}

// GetInt returns the value under key as an int, or def.
func (ec *ExecutionContext) GetInt(key string, def int) int {
	return int(ec.GetInt64(key, int64(def)))
}

// GetFloat64 returns the value under key as a float64, or def.
func (ec *ExecutionContext) GetFloat64(key string, def float64) float64 {
	v, ok := ec.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return def
}

// GetBool returns the value under key as a bool, or def.
func (ec *ExecutionContext) GetBool(key string, def bool) bool {
	v, ok := ec.Get(key)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

// IsDirty reports whether the context changed since the last ClearDirty.
func (ec *ExecutionContext) IsDirty() bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.dirty
}

// ClearDirty marks the context as persisted.
func (ec *ExecutionContext) ClearDirty() {
	ec.mu.Lock()
	ec.dirty = false
	ec.mu.Unlock()
}

// IsEmpty reports whether the context has no entries.
func (ec *ExecutionContext) IsEmpty() bool {
	return ec.Size() == 0
}

// Size returns the number of entries.
func (ec *ExecutionContext) Size() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.data)
}

// Keys returns the keys in sorted order.
func (ec *ExecutionContext) Keys() []string {
	ec.mu.RLock()
	keys := make([]string, 0, len(ec.data))
	for k := range ec.data {
		keys = append(keys, k)
	}
	ec.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Entries returns a shallow copy of the underlying map.
func (ec *ExecutionContext) Entries() map[string]interface{} {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]interface{}, len(ec.data))
	for k, v := range ec.data {
		out[k] = v
	}
	return out
}

// Copy returns a clean ExecutionContext with the same entries.
func (ec *ExecutionContext) Copy() *ExecutionContext {
	if ec == nil {
		return NewExecutionContext()
	}
	return NewExecutionContextFrom(ec.Entries())
}

// MarshalJSON implements json.Marshaler.
func (ec *ExecutionContext) MarshalJSON() ([]byte, error) {
	if ec == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(ec.Entries())
}

// UnmarshalJSON implements json.Unmarshaler. The context is clean afterwards.
func (ec *ExecutionContext) UnmarshalJSON(data []byte) error {
	m := make(map[string]interface{})
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
	}
	ec.mu.Lock()
	ec.data = m
	ec.dirty = false
	ec.mu.Unlock()
	return nil
}

// Value implements driver.Valuer, storing the context as a JSON string.
func (ec *ExecutionContext) Value() (driver.Value, error) {
	data, err := ec.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (ec *ExecutionContext) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return ec.UnmarshalJSON(nil)
	case []byte:
		return ec.UnmarshalJSON(v)
	case string:
		return ec.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported Scan type for ExecutionContext: %T", value)
	}
}

// String returns the JSON form of the context.
func (ec *ExecutionContext) String() string {
	data, err := ec.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("{[ERROR: %v]}", err)
	}
	return string(data)
}

// Reserved execution context keys.
const (
	// ContextKeyRestart is set to true in a step context that was re-adopted from a previous run.
	ContextKeyRestart = "batch.restart"
	// ContextKeyExecuted is set to true once a step has run in the current job execution.
	ContextKeyExecuted = "batch.executed"
)
