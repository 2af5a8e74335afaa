// Package schema defines the columnar schema model used by Arca: typed,
// named, nullable, possibly-nested fields, plus the type lattice that merges
// observed types during tracing and the converters to and from Arrow schemas.
package schema

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

// TypeID enumerates the supported logical types.
type TypeID int

const (
	// TypeNull is the absence of any observed type. It merges with every
	// other type; a field left at TypeNull after tracing had no observations.
	TypeNull TypeID = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeUtf8
	TypeLargeUtf8
	TypeList
	TypeLargeList
	TypeStruct
	TypeMap
	TypeUnion
	TypeDictionary
)

var typeNames = map[TypeID]string{
	TypeNull:       "null",
	TypeBool:       "bool",
	TypeInt8:       "int8",
	TypeInt16:      "int16",
	TypeInt32:      "int32",
	TypeInt64:      "int64",
	TypeUint8:      "uint8",
	TypeUint16:     "uint16",
	TypeUint32:     "uint32",
	TypeUint64:     "uint64",
	TypeFloat32:    "float32",
	TypeFloat64:    "float64",
	TypeUtf8:       "utf8",
	TypeLargeUtf8:  "large_utf8",
	TypeList:       "list",
	TypeLargeList:  "large_list",
	TypeStruct:     "struct",
	TypeMap:        "map",
	TypeUnion:      "union",
	TypeDictionary: "dictionary",
}

// String returns the canonical lowercase name of the type.
func (id TypeID) String() string {
	if name, ok := typeNames[id]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(id))
}

// ParseTypeID resolves a canonical type name back to its TypeID.
func ParseTypeID(name string) (TypeID, error) {
	for id, n := range typeNames {
		if n == name {
			return id, nil
		}
	}
	return TypeNull, arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
		"unknown type name %q", name)
}

// DataType is the tagged type descriptor of a Field. For all variants except
// Dictionary the ID alone identifies the type; children of compound types
// (List, Struct, Map, Union) live on the owning Field.
type DataType struct {
	ID TypeID `json:"id"`

	// IndexType and ValueType are set only for Dictionary types.
	IndexType *DataType `json:"index_type,omitempty"`
	ValueType *DataType `json:"value_type,omitempty"`
}

// PrimitiveType returns the DataType for a non-dictionary type id.
func PrimitiveType(id TypeID) DataType {
	return DataType{ID: id}
}

// DictionaryType builds a dictionary-encoded type with the given integer
// index type and value type.
func DictionaryType(index, value DataType) DataType {
	return DataType{ID: TypeDictionary, IndexType: &index, ValueType: &value}
}

// String renders the type, including dictionary parameters.
func (t DataType) String() string {
	if t.ID == TypeDictionary && t.IndexType != nil && t.ValueType != nil {
		return fmt.Sprintf("dictionary<%s,%s>", t.IndexType, t.ValueType)
	}
	return t.ID.String()
}

// Equal reports deep equality of two data types.
func (t DataType) Equal(other DataType) bool {
	if t.ID != other.ID {
		return false
	}
	if t.ID != TypeDictionary {
		return true
	}
	if (t.IndexType == nil) != (other.IndexType == nil) || (t.ValueType == nil) != (other.ValueType == nil) {
		return false
	}
	if t.IndexType != nil && !t.IndexType.Equal(*other.IndexType) {
		return false
	}
	if t.ValueType != nil && !t.ValueType.Equal(*other.ValueType) {
		return false
	}
	return true
}

// IsCompound reports whether the type carries child fields.
func (t DataType) IsCompound() bool {
	switch t.ID {
	case TypeList, TypeLargeList, TypeStruct, TypeMap, TypeUnion:
		return true
	}
	return false
}

// IsInteger reports whether the type is a signed or unsigned integer.
func (t DataType) IsInteger() bool {
	return t.ID >= TypeInt8 && t.ID <= TypeUint64
}

// IsSignedInteger reports whether the type is a signed integer.
func (t DataType) IsSignedInteger() bool {
	return t.ID >= TypeInt8 && t.ID <= TypeInt64
}

// IsFloat reports whether the type is a floating point type.
func (t DataType) IsFloat() bool {
	return t.ID == TypeFloat32 || t.ID == TypeFloat64
}

// IsString reports whether the type is a utf8 string type.
func (t DataType) IsString() bool {
	return t.ID == TypeUtf8 || t.ID == TypeLargeUtf8
}

// BitWidth returns the bit width of integer and float types, 0 otherwise.
func (t DataType) BitWidth() int {
	switch t.ID {
	case TypeInt8, TypeUint8:
		return 8
	case TypeInt16, TypeUint16:
		return 16
	case TypeInt32, TypeUint32, TypeFloat32:
		return 32
	case TypeInt64, TypeUint64, TypeFloat64:
		return 64
	}
	return 0
}

// IntegerTypeOf returns the integer TypeID for a bit width and signedness.
func IntegerTypeOf(width int, signed bool) TypeID {
	if signed {
		return signedOfWidth(width)
	}
	return unsignedOfWidth(width)
}

// Field is one named, typed, nullable column descriptor, possibly nesting
// child fields. Children arity is fixed per type:
//
//	List/LargeList: exactly one child (element)
//	Struct:         one child per member, order-significant
//	Map:            exactly two children, key then value
//	Union:          one child per variant
type Field struct {
	Name     string            `json:"name"`
	Type     DataType          `json:"type"`
	Nullable bool              `json:"nullable"`
	Children []Field           `json:"children,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewField builds a leaf field.
func NewField(name string, id TypeID, nullable bool) Field {
	return Field{Name: name, Type: PrimitiveType(id), Nullable: nullable}
}

// ListOf builds a list field with the given element field.
func ListOf(name string, elem Field, nullable bool) Field {
	return Field{Name: name, Type: PrimitiveType(TypeList), Nullable: nullable, Children: []Field{elem}}
}

// LargeListOf builds a large-list field with the given element field.
func LargeListOf(name string, elem Field, nullable bool) Field {
	return Field{Name: name, Type: PrimitiveType(TypeLargeList), Nullable: nullable, Children: []Field{elem}}
}

// StructOf builds a struct field with the given members.
func StructOf(name string, nullable bool, children ...Field) Field {
	return Field{Name: name, Type: PrimitiveType(TypeStruct), Nullable: nullable, Children: children}
}

// MapOf builds a map field with the given key and value fields.
func MapOf(name string, key, value Field, nullable bool) Field {
	return Field{Name: name, Type: PrimitiveType(TypeMap), Nullable: nullable, Children: []Field{key, value}}
}

// UnionOf builds a union field with the given variants.
func UnionOf(name string, nullable bool, variants ...Field) Field {
	return Field{Name: name, Type: PrimitiveType(TypeUnion), Nullable: nullable, Children: variants}
}

// Validate checks the children-arity invariants of the field tree.
func (f Field) Validate() error {
	return f.validate(f.Name)
}

func (f Field) validate(path string) error {
	switch f.Type.ID {
	case TypeList, TypeLargeList:
		if len(f.Children) != 1 {
			return arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
				"%s field requires exactly one child, got %d", f.Type, len(f.Children)).WithPath(path)
		}
	case TypeStruct:
		if len(f.Children) == 0 {
			return arcaerrors.New(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
				"struct field requires at least one child").WithPath(path)
		}
		if err := checkSiblingNames(path, f.Children); err != nil {
			return err
		}
	case TypeMap:
		if len(f.Children) != 2 {
			return arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
				"map field requires exactly two children (key, value), got %d", len(f.Children)).WithPath(path)
		}
	case TypeUnion:
		if len(f.Children) == 0 {
			return arcaerrors.New(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
				"union field requires at least one variant").WithPath(path)
		}
		if err := checkSiblingNames(path, f.Children); err != nil {
			return err
		}
	case TypeDictionary:
		if f.Type.IndexType == nil || f.Type.ValueType == nil {
			return arcaerrors.New(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
				"dictionary field requires index and value types").WithPath(path)
		}
	default:
		if len(f.Children) != 0 {
			return arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
				"%s field cannot carry children", f.Type).WithPath(path)
		}
	}

	for _, child := range f.Children {
		if err := child.validate(ChildPath(path, child.Name)); err != nil {
			return err
		}
	}
	return nil
}

// String renders the field as name: type, recursing into children.
func (f Field) String() string {
	var sb strings.Builder
	f.render(&sb)
	return sb.String()
}

func (f Field) render(sb *strings.Builder) {
	fmt.Fprintf(sb, "%s: %s", f.Name, f.Type)
	if f.Nullable {
		sb.WriteString("?")
	}
	if len(f.Children) > 0 {
		sb.WriteString("<")
		for i, c := range f.Children {
			if i > 0 {
				sb.WriteString(", ")
			}
			c.render(sb)
		}
		sb.WriteString(">")
	}
}

// Schema is an ordered collection of top-level fields with sibling-unique
// names. It is immutable once constructed and safe to share across
// concurrent conversion batches.
type Schema struct {
	fields []Field
}

// New builds a schema from the given fields, validating arity invariants and
// sibling name uniqueness at every nesting level.
func New(fields []Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, arcaerrors.New(arcaerrors.ErrorTypeSchema, arcaerrors.CodeEmptySchema,
			"schema requires at least one field").WithPath("")
	}
	if err := checkSiblingNames("", fields); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return &Schema{fields: cp}, nil
}

// Fields returns the ordered top-level fields.
func (s *Schema) Fields() []Field {
	return s.fields
}

// NumFields returns the number of top-level fields.
func (s *Schema) NumFields() int {
	return len(s.fields)
}

// Field returns the top-level field at index i.
func (s *Schema) Field(i int) Field {
	return s.fields[i]
}

// FieldByName returns the named top-level field.
func (s *Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// String renders the schema one field per line.
func (s *Schema) String() string {
	var sb strings.Builder
	for i, f := range s.fields {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}

func checkSiblingNames(path string, fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
				"duplicate field name %q", f.Name).WithPath(ChildPath(path, f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// ChildPath joins a parent path and a child name into a dot-separated path.
func ChildPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// ElementPath renders the path of a list element.
func ElementPath(parent string) string {
	return parent + "[]"
}
