package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// OpKind identifies a field-level mutation.
type OpKind int

const (
	// OpSet assigns a top-level field.
	OpSet OpKind = iota
	// OpIncrement adds Delta to a numeric field, treating a missing field as 0.
	OpIncrement
	// OpSetKey assigns Key inside a map-valued field, creating the map if needed.
	OpSetKey
	// OpUnsetKey deletes Key from a map-valued field.
	OpUnsetKey
	// OpAppend adds Value to an array field unless already present.
	OpAppend
	// OpRemove removes every occurrence of Value from an array field.
	OpRemove
)

// Op is one mutation of a Patch.
type Op struct {
	Kind  OpKind
	Field string
	Key   string
	Value any
	Delta int64
}

// Patch is an ordered list of field-level mutations applied atomically to one document.
type Patch struct {
	ops []Op
}

// NewPatch returns an empty patch.
func NewPatch() *Patch {
	return &Patch{}
}

func (p *Patch) add(op Op) *Patch {
	p.ops = append(p.ops, op)
	return p
}

func (p *Patch) Set(field string, value any) *Patch {
	return p.add(Op{Kind: OpSet, Field: field, Value: value})
}

func (p *Patch) Increment(field string, delta int64) *Patch {
	return p.add(Op{Kind: OpIncrement, Field: field, Delta: delta})
}

func (p *Patch) SetKey(field, key string, value any) *Patch {
	return p.add(Op{Kind: OpSetKey, Field: field, Key: key, Value: value})
}

func (p *Patch) UnsetKey(field, key string) *Patch {
	return p.add(Op{Kind: OpUnsetKey, Field: field, Key: key})
}

func (p *Patch) Append(field string, value any) *Patch {
	return p.add(Op{Kind: OpAppend, Field: field, Value: value})
}

func (p *Patch) Remove(field string, value any) *Patch {
	return p.add(Op{Kind: OpRemove, Field: field, Value: value})
}

// Ops returns the mutations in order.
func (p *Patch) Ops() []Op {
	if p == nil {
		return nil
	}
	return p.ops
}

// Len is the number of mutations.
func (p *Patch) Len() int {
	if p == nil {
		return 0
	}
	return len(p.ops)
}

// Apply runs the mutations against data in place. Backends without native field operators
// read the document, Apply the patch and write it back under a version check.
func (p *Patch) Apply(data map[string]any) error {
	for _, op := range p.Ops() {
		switch op.Kind {
		case OpSet:
			data[op.Field] = op.Value
		case OpIncrement:
			current, err := toInt64(data[op.Field])
			if err != nil {
				return fmt.Errorf("increment %q: %w", op.Field, err)
			}
			data[op.Field] = current + op.Delta
		case OpSetKey:
			m, err := toMap(data[op.Field])
			if err != nil {
				return fmt.Errorf("set %q key: %w", op.Field, err)
			}
			if m == nil {
				m = map[string]any{}
			}
			m[op.Key] = op.Value
			data[op.Field] = m
		case OpUnsetKey:
			m, err := toMap(data[op.Field])
			if err != nil {
				return fmt.Errorf("unset %q key: %w", op.Field, err)
			}
			if m != nil {
				delete(m, op.Key)
				data[op.Field] = m
			}
		case OpAppend:
			arr, err := toSlice(data[op.Field])
			if err != nil {
				return fmt.Errorf("append to %q: %w", op.Field, err)
			}
			if !containsValue(arr, op.Value) {
				arr = append(arr, op.Value)
			}
			data[op.Field] = arr
		case OpRemove:
			arr, err := toSlice(data[op.Field])
			if err != nil {
				return fmt.Errorf("remove from %q: %w", op.Field, err)
			}
			kept := arr[:0]
			for _, v := range arr {
				if !sameValue(v, op.Value) {
					kept = append(kept, v)
				}
			}
			data[op.Field] = kept
		default:
			return fmt.Errorf("unknown patch op %d", op.Kind)
		}
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("non-integer value %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("non-numeric value of type %T", v)
	}
}

func toMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	case map[string]bool:
		out := make(map[string]any, len(m))
		for k, b := range m {
			out[k] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value of type %T is not a map", v)
	}
}

func toSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return s, nil
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value of type %T is not an array", v)
	}
}

func containsValue(arr []any, v any) bool {
	for _, x := range arr {
		if sameValue(x, v) {
			return true
		}
	}
	return false
}

func sameValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
