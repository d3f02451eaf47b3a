// internal/rules/valuetype.go
package rules

import (
	"fmt"

	"github.com/solatis/hl7keeper/internal/types"
)

/*
 * Structural type system for $type predicates.
 *
 * Six-type closed set mirroring JSON: Object, Array, String, Number, Boolean,
 * Null. Wire names are capitalised exactly as listed and matched
 * case-sensitively at parse time.
 *
 * No coercion: a numeric string is a String, not a Number.
 */

// ValueType is the expected structural type of a $type predicate.
type ValueType int

const (
	TypeUnspecified ValueType = iota
	TypeObject
	TypeArray
	TypeString
	TypeNumber
	TypeBoolean
	TypeNull
)

var valueTypeNames = map[ValueType]string{
	TypeObject:  "Object",
	TypeArray:   "Array",
	TypeString:  "String",
	TypeNumber:  "Number",
	TypeBoolean: "Boolean",
	TypeNull:    "Null",
}

// String returns the wire name of the type.
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// ParseValueType converts a wire name into a ValueType.
func ParseValueType(name string) (ValueType, error) {
	for t, n := range valueTypeNames {
		if n == name {
			return t, nil
		}
	}
	return TypeUnspecified, fmt.Errorf("unknown type %q (expected Object, Array, String, Number, Boolean or Null)", name)
}

// TypeOf classifies a document value. Exhaustive over types.Kind.
func TypeOf(v types.Value) ValueType {
	switch v.Kind() {
	case types.KindObject:
		return TypeObject
	case types.KindArray:
		return TypeArray
	case types.KindString:
		return TypeString
	case types.KindNumber:
		return TypeNumber
	case types.KindBool:
		return TypeBoolean
	case types.KindNull:
		return TypeNull
	default:
		return TypeUnspecified
	}
}
