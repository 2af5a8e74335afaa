// Package walk defines the generic value model and the value-walking
// protocol that connect Arca's conversion core to arbitrary record types.
// A record type exposes itself by implementing Walkable; the core never
// depends on concrete record representations.
package walk

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindSeq
	KindStruct
	KindMap
	KindVariant
)

var kindNames = [...]string{
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindUint:    "uint",
	KindFloat:   "float",
	KindString:  "string",
	KindSeq:     "seq",
	KindStruct:  "struct",
	KindMap:     "map",
	KindVariant: "variant",
}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a transient tagged variant produced by walking one record. Values
// exist only for the duration of a single walk; they are never persisted.
type Value struct {
	Kind Kind

	// Width is the bit width (8, 16, 32, 64) for Int, Uint and Float kinds.
	Width uint8

	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string

	Seq     []Value
	Fields  []StructField
	Entries []MapEntry

	// Variant payload: the tag name, its declaration index and inner value.
	Tag      string
	TagIndex int
	Inner    *Value
}

// StructField is one named member of a struct value, in declaration order.
type StructField struct {
	Name  string
	Value Value
}

// MapEntry is one key/value pair of a map value, in insertion order.
type MapEntry struct {
	Key   Value
	Value Value
}

// Null returns the null value.
func Null() Value {
	return Value{Kind: KindNull}
}

// Bool wraps a boolean.
func Bool(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

// Int wraps a signed integer of the given bit width.
func Int(v int64, width uint8) Value {
	return Value{Kind: KindInt, Int: v, Width: width}
}

// Int64 wraps a 64-bit signed integer.
func Int64(v int64) Value {
	return Int(v, 64)
}

// Uint wraps an unsigned integer of the given bit width.
func Uint(v uint64, width uint8) Value {
	return Value{Kind: KindUint, Uint: v, Width: width}
}

// Uint64 wraps a 64-bit unsigned integer.
func Uint64(v uint64) Value {
	return Uint(v, 64)
}

// Float wraps a float of the given bit width (32 or 64).
func Float(v float64, width uint8) Value {
	return Value{Kind: KindFloat, Float: v, Width: width}
}

// Float64 wraps a 64-bit float.
func Float64(v float64) Value {
	return Float(v, 64)
}

// String wraps a string.
func String(v string) Value {
	return Value{Kind: KindString, Str: v}
}

// Seq wraps a sequence of values.
func Seq(items []Value) Value {
	return Value{Kind: KindSeq, Seq: items}
}

// Struct wraps an ordered set of named members.
func Struct(fields []StructField) Value {
	return Value{Kind: KindStruct, Fields: fields}
}

// Map wraps an ordered set of key/value entries.
func Map(entries []MapEntry) Value {
	return Value{Kind: KindMap, Entries: entries}
}

// Variant wraps a tagged enum value.
func Variant(tag string, index int, inner Value) Value {
	return Value{Kind: KindVariant, Tag: tag, TagIndex: index, Inner: &inner}
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// FieldByName returns the named struct member.
func (v Value) FieldByName(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// GoString renders a compact debug form of the value tree.
func (v Value) GoString() string {
	var sb strings.Builder
	v.debug(&sb)
	return sb.String()
}

func (v Value) debug(sb *strings.Builder) {
	switch v.Kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		fmt.Fprintf(sb, "%v", v.Bool)
	case KindInt:
		fmt.Fprintf(sb, "%d", v.Int)
	case KindUint:
		fmt.Fprintf(sb, "%du", v.Uint)
	case KindFloat:
		fmt.Fprintf(sb, "%g", v.Float)
	case KindString:
		fmt.Fprintf(sb, "%q", v.Str)
	case KindSeq:
		sb.WriteString("[")
		for i, item := range v.Seq {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.debug(sb)
		}
		sb.WriteString("]")
	case KindStruct:
		sb.WriteString("{")
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%s: ", f.Name)
			f.Value.debug(sb)
		}
		sb.WriteString("}")
	case KindMap:
		sb.WriteString("map{")
		for i, e := range v.Entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.Key.debug(sb)
			sb.WriteString(": ")
			e.Value.debug(sb)
		}
		sb.WriteString("}")
	case KindVariant:
		fmt.Fprintf(sb, "%s(", v.Tag)
		if v.Inner != nil {
			v.Inner.debug(sb)
		}
		sb.WriteString(")")
	}
}
