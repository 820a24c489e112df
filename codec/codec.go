// Package codec serializes domain records to and from a JSON-compatible
// tree.
//
// Typed records are tagged with a "class" discriminator so they round-trip
// losslessly: the encoder injects the tag, and the decoder re-hydrates
// registered classes into their concrete Go types. An object carrying an
// unknown class decodes as a plain map rather than failing, which keeps the
// wire forward-compatible with vendor-specific extensions. Numbers decode
// via json.Number so 64-bit byte counts keep full precision.
//
// The codec is a pure transform; it holds no connection state and performs
// no I/O.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Record is a domain object that serializes with a class discriminator.
type Record interface {
	Class() string
}

var (
	regMu    sync.RWMutex
	registry = make(map[string]func() Record)
)

// Register binds a class name to a factory producing an empty record of that
// class. Packages defining records call this from init; a duplicate class is
// a programming error.
func Register(class string, factory func() Record) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[class]; dup {
		panic(fmt.Sprintf("codec: class %q registered twice", class))
	}
	registry[class] = factory
}

// Classes returns the registered class names, sorted. Intended for
// diagnostics.
func Classes() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func factoryFor(class string) (func() Record, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := registry[class]
	return f, ok
}

// Encode serializes v to JSON bytes, tagging every Record in the tree with
// its class.
func Encode(v any) ([]byte, error) {
	tree, err := toTree(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Decode parses JSON bytes into a value tree, re-hydrating tagged objects
// into their registered concrete types.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return fromTree(raw)
}

// toTree converts v into a JSON-marshalable tree, walking slices and maps so
// nested records are tagged as well.
func toTree(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if r, ok := v.(Record); ok {
		rv := reflect.ValueOf(r)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return recordToTree(r)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}, nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			t, err := toTree(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("codec: map keys must be strings, got %s", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			t, err := toTree(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = t
		}
		return out, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return toTree(rv.Elem().Interface())
	default:
		return v, nil
	}
}

// recordToTree flattens a record into a map and injects the discriminator.
func recordToTree(r Record) (any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal %s: %w", r.Class(), err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	m := make(map[string]any)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("codec: flatten %s: %w", r.Class(), err)
	}
	m["class"] = r.Class()
	return m, nil
}

// fromTree walks a decoded tree bottom-up, replacing tagged maps with
// concrete records.
func fromTree(v any) (any, error) {
	switch node := v.(type) {
	case map[string]any:
		for key, val := range node {
			sub, err := fromTree(val)
			if err != nil {
				return nil, err
			}
			node[key] = sub
		}
		class, ok := node["class"].(string)
		if !ok {
			return node, nil
		}
		factory, known := factoryFor(class)
		if !known {
			// Unknown discriminator: pass through as a mapping.
			return node, nil
		}
		return hydrate(node, factory())
	case []any:
		for i, val := range node {
			sub, err := fromTree(val)
			if err != nil {
				return nil, err
			}
			node[i] = sub
		}
		return node, nil
	default:
		return v, nil
	}
}

// hydrate fills rec from the tagged map by a marshal round trip, so record
// types only need ordinary json tags.
func hydrate(m map[string]any, rec Record) (Record, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("codec: hydrate %s: %w", rec.Class(), err)
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("codec: hydrate %s: %w", rec.Class(), err)
	}
	return rec, nil
}
