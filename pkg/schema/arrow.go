package schema

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

// ToArrow converts the schema into an Arrow schema. The conversion is
// loss-free: field order, nullability and nesting are preserved, so arrays
// built against the result satisfy the columnar interchange contract.
func (s *Schema) ToArrow() (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(s.fields))
	for i, f := range s.fields {
		af, err := FieldToArrow(f)
		if err != nil {
			return nil, err
		}
		fields[i] = af
	}
	return arrow.NewSchema(fields, nil), nil
}

// FieldToArrow converts one field descriptor into its Arrow counterpart.
func FieldToArrow(f Field) (arrow.Field, error) {
	return fieldToArrow(f.Name, f)
}

func fieldToArrow(path string, f Field) (arrow.Field, error) {
	dt, err := typeToArrow(path, f)
	if err != nil {
		return arrow.Field{}, err
	}
	out := arrow.Field{Name: f.Name, Type: dt, Nullable: f.Nullable}
	if len(f.Metadata) > 0 {
		keys := make([]string, 0, len(f.Metadata))
		vals := make([]string, 0, len(f.Metadata))
		for k, v := range f.Metadata {
			keys = append(keys, k)
			vals = append(vals, v)
		}
		out.Metadata = arrow.NewMetadata(keys, vals)
	}
	return out, nil
}

func typeToArrow(path string, f Field) (arrow.DataType, error) {
	switch f.Type.ID {
	case TypeNull:
		return arrow.Null, nil
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case TypeInt8:
		return arrow.PrimitiveTypes.Int8, nil
	case TypeInt16:
		return arrow.PrimitiveTypes.Int16, nil
	case TypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case TypeUint8:
		return arrow.PrimitiveTypes.Uint8, nil
	case TypeUint16:
		return arrow.PrimitiveTypes.Uint16, nil
	case TypeUint32:
		return arrow.PrimitiveTypes.Uint32, nil
	case TypeUint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case TypeFloat32:
		return arrow.PrimitiveTypes.Float32, nil
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case TypeUtf8:
		return arrow.BinaryTypes.String, nil
	case TypeLargeUtf8:
		return arrow.BinaryTypes.LargeString, nil
	case TypeList:
		elem, err := fieldToArrow(ElementPath(path), f.Children[0])
		if err != nil {
			return nil, err
		}
		return arrow.ListOfField(elem), nil
	case TypeLargeList:
		elem, err := fieldToArrow(ElementPath(path), f.Children[0])
		if err != nil {
			return nil, err
		}
		return arrow.LargeListOfField(elem), nil
	case TypeStruct:
		children := make([]arrow.Field, len(f.Children))
		for i, c := range f.Children {
			af, err := fieldToArrow(ChildPath(path, c.Name), c)
			if err != nil {
				return nil, err
			}
			children[i] = af
		}
		return arrow.StructOf(children...), nil
	case TypeMap:
		key, err := typeToArrow(ChildPath(path, f.Children[0].Name), f.Children[0])
		if err != nil {
			return nil, err
		}
		item, err := typeToArrow(ChildPath(path, f.Children[1].Name), f.Children[1])
		if err != nil {
			return nil, err
		}
		return arrow.MapOf(key, item), nil
	case TypeUnion:
		variants := make([]arrow.Field, len(f.Children))
		codes := make([]arrow.UnionTypeCode, len(f.Children))
		for i, v := range f.Children {
			af, err := fieldToArrow(ChildPath(path, v.Name), v)
			if err != nil {
				return nil, err
			}
			variants[i] = af
			codes[i] = arrow.UnionTypeCode(i)
		}
		return arrow.DenseUnionOf(variants, codes), nil
	case TypeDictionary:
		index, err := typeToArrow(path, Field{Type: *f.Type.IndexType})
		if err != nil {
			return nil, err
		}
		value, err := typeToArrow(path, Field{Type: *f.Type.ValueType})
		if err != nil {
			return nil, err
		}
		return &arrow.DictionaryType{IndexType: index, ValueType: value}, nil
	}
	return nil, arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
		"type %s has no arrow mapping", f.Type).WithPath(path)
}

// FromArrow converts an Arrow schema back into the Arca schema model.
func FromArrow(as *arrow.Schema) (*Schema, error) {
	fields := make([]Field, len(as.Fields()))
	for i, af := range as.Fields() {
		f, err := fieldFromArrow(af)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return New(fields)
}

func fieldFromArrow(af arrow.Field) (Field, error) {
	f := Field{Name: af.Name, Nullable: af.Nullable}
	if af.Metadata.Len() > 0 {
		f.Metadata = make(map[string]string, af.Metadata.Len())
		for i, k := range af.Metadata.Keys() {
			f.Metadata[k] = af.Metadata.Values()[i]
		}
	}

	switch dt := af.Type.(type) {
	case *arrow.NullType:
		f.Type = PrimitiveType(TypeNull)
	case *arrow.BooleanType:
		f.Type = PrimitiveType(TypeBool)
	case *arrow.Int8Type:
		f.Type = PrimitiveType(TypeInt8)
	case *arrow.Int16Type:
		f.Type = PrimitiveType(TypeInt16)
	case *arrow.Int32Type:
		f.Type = PrimitiveType(TypeInt32)
	case *arrow.Int64Type:
		f.Type = PrimitiveType(TypeInt64)
	case *arrow.Uint8Type:
		f.Type = PrimitiveType(TypeUint8)
	case *arrow.Uint16Type:
		f.Type = PrimitiveType(TypeUint16)
	case *arrow.Uint32Type:
		f.Type = PrimitiveType(TypeUint32)
	case *arrow.Uint64Type:
		f.Type = PrimitiveType(TypeUint64)
	case *arrow.Float32Type:
		f.Type = PrimitiveType(TypeFloat32)
	case *arrow.Float64Type:
		f.Type = PrimitiveType(TypeFloat64)
	case *arrow.StringType:
		f.Type = PrimitiveType(TypeUtf8)
	case *arrow.LargeStringType:
		f.Type = PrimitiveType(TypeLargeUtf8)
	case *arrow.ListType:
		elem, err := fieldFromArrow(dt.ElemField())
		if err != nil {
			return Field{}, err
		}
		f.Type = PrimitiveType(TypeList)
		f.Children = []Field{elem}
	case *arrow.LargeListType:
		elem, err := fieldFromArrow(dt.ElemField())
		if err != nil {
			return Field{}, err
		}
		f.Type = PrimitiveType(TypeLargeList)
		f.Children = []Field{elem}
	case *arrow.StructType:
		children := make([]Field, dt.NumFields())
		for i := 0; i < dt.NumFields(); i++ {
			c, err := fieldFromArrow(dt.Field(i))
			if err != nil {
				return Field{}, err
			}
			children[i] = c
		}
		f.Type = PrimitiveType(TypeStruct)
		f.Children = children
	case *arrow.MapType:
		key, err := fieldFromArrow(arrow.Field{Name: "key", Type: dt.KeyType()})
		if err != nil {
			return Field{}, err
		}
		value, err := fieldFromArrow(arrow.Field{Name: "value", Type: dt.ItemType(), Nullable: true})
		if err != nil {
			return Field{}, err
		}
		f.Type = PrimitiveType(TypeMap)
		f.Children = []Field{key, value}
	case *arrow.DenseUnionType:
		variants := make([]Field, len(dt.Fields()))
		for i, vf := range dt.Fields() {
			v, err := fieldFromArrow(vf)
			if err != nil {
				return Field{}, err
			}
			variants[i] = v
		}
		f.Type = PrimitiveType(TypeUnion)
		f.Children = variants
	case *arrow.DictionaryType:
		index, err := fieldFromArrow(arrow.Field{Name: af.Name, Type: dt.IndexType})
		if err != nil {
			return Field{}, err
		}
		value, err := fieldFromArrow(arrow.Field{Name: af.Name, Type: dt.ValueType})
		if err != nil {
			return Field{}, err
		}
		f.Type = DictionaryType(index.Type, value.Type)
	default:
		return Field{}, arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
			"arrow type %s has no schema mapping", af.Type).WithPath(af.Name)
	}
	return f, nil
}
