// Package codec rewrites aspect structures between the internal
// code-generated type-name namespace and the catalog's wire namespace, and
// encodes them into the generic aspect form the catalog stores.
package codec

import (
	"fmt"
	"strings"
)

const (
	// InternalPrefix is the namespace aspects are authored against in
	// code.
	InternalPrefix = "io.lodestar.schema."

	// WirePrefix is the namespace the catalog's storage layer expects.
	WirePrefix = "io.lodestar."
)

// fieldDiscriminator marks a union between primitive alternatives: the
// discriminator names the sibling field that holds the selected value.
const fieldDiscriminator = "fieldDiscriminator"

// ToWire rewrites every fully-qualified type name under the internal
// namespace to the wire namespace, recursively through nested mappings and
// sequences. Nil-valued mapping entries are dropped and byte-sequence
// leaves are decoded to text.
func ToWire(obj interface{}) (interface{}, error) {
	return transform(obj, InternalPrefix, WirePrefix)
}

// FromWire is the exact inverse of ToWire on any structure ToWire produced.
func FromWire(obj interface{}) (interface{}, error) {
	return transform(obj, WirePrefix, InternalPrefix)
}

func transform(obj interface{}, from, to string) (interface{}, error) {
	switch v := obj.(type) {
	case map[string]interface{}:
		// A single-key mapping whose key carries the source prefix is a
		// tagged union: one field selected out of a closed set of
		// alternatives.
		if len(v) == 1 {
			for key, value := range v {
				if strings.HasPrefix(key, from) {
					newKey := strings.Replace(key, from, to, 1)
					inner, err := transform(value, from, to)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{newKey: inner}, nil
				}
			}
		}

		if disc, ok := v[fieldDiscriminator]; ok {
			field, ok := disc.(string)
			if !ok {
				return nil, fmt.Errorf("field discriminator is %T, want string", disc)
			}
			selected, ok := v[field]
			if !ok {
				return nil, fmt.Errorf("field discriminator names missing field %q", field)
			}
			inner, err := transform(selected, from, to)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{field: inner}, nil
		}

		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if value == nil {
				continue
			}
			inner, err := transform(value, from, to)
			if err != nil {
				return nil, err
			}
			out[key] = inner
		}
		return out, nil

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			inner, err := transform(item, from, to)
			if err != nil {
				return nil, err
			}
			out[i] = inner
		}
		return out, nil

	case []byte:
		return string(v), nil

	default:
		return obj, nil
	}
}
