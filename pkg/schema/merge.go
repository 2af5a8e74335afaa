package schema

import (
	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

// MergeOptions controls type lattice behavior.
type MergeOptions struct {
	// Strict makes merges of incompatible leaf kinds fail with
	// incompatible_types. When false, such pairs merge to a Union holding
	// one variant per type class.
	Strict bool
}

// Merge merges two observations of the same logical field into their least
// common type. Merge is commutative and associative, so the order in which
// records are traced does not change the final schema.
func Merge(a, b Field, opts MergeOptions) (Field, error) {
	return mergeField(a.Name, a, b, opts)
}

func mergeField(path string, a, b Field, opts MergeOptions) (Field, error) {
	nullable := a.Nullable || b.Nullable

	// Null merges with anything to that other type. A null observation
	// carries Nullable=true and forces it onto the result; the unobserved
	// placeholder (empty list elements) carries Nullable=false and does not.
	if a.Type.ID == TypeNull {
		out := b
		out.Name = a.Name
		out.Nullable = nullable
		return out, nil
	}
	if b.Type.ID == TypeNull {
		out := a
		out.Nullable = nullable
		return out, nil
	}

	merged, err := mergeTyped(path, a, b, opts)
	if err != nil {
		return Field{}, err
	}
	merged.Name = a.Name
	merged.Nullable = nullable
	merged.Metadata = mergeMetadata(a.Metadata, b.Metadata)
	return merged, nil
}

// mergeTyped merges two non-null fields; name, nullability and metadata are
// handled by the caller.
func mergeTyped(path string, a, b Field, opts MergeOptions) (Field, error) {
	at, bt := a.Type, b.Type

	switch {
	case at.ID == TypeBool && bt.ID == TypeBool:
		return Field{Type: at}, nil

	case at.IsInteger() && bt.IsInteger():
		return Field{Type: mergeIntegers(at, bt)}, nil

	case at.IsFloat() && bt.IsFloat():
		return Field{Type: PrimitiveType(widerFloat(at, bt))}, nil

	case at.IsInteger() && bt.IsFloat():
		return Field{Type: PrimitiveType(floatForInt(at, bt))}, nil
	case at.IsFloat() && bt.IsInteger():
		return Field{Type: PrimitiveType(floatForInt(bt, at))}, nil

	case at.IsString() && bt.IsString():
		if at.ID == TypeLargeUtf8 || bt.ID == TypeLargeUtf8 {
			return Field{Type: PrimitiveType(TypeLargeUtf8)}, nil
		}
		return Field{Type: PrimitiveType(TypeUtf8)}, nil

	case at.ID == TypeDictionary && bt.ID == TypeDictionary:
		return mergeDictionaries(path, a, b, opts)
	case at.ID == TypeDictionary:
		return mergeTyped(path, Field{Type: *at.ValueType}, b, opts)
	case bt.ID == TypeDictionary:
		return mergeTyped(path, a, Field{Type: *bt.ValueType}, opts)

	case isListKind(at.ID) && isListKind(bt.ID):
		elem, err := mergeField(ElementPath(path), a.Children[0], b.Children[0], opts)
		if err != nil {
			return Field{}, err
		}
		id := TypeList
		if at.ID == TypeLargeList || bt.ID == TypeLargeList {
			id = TypeLargeList
		}
		return Field{Type: PrimitiveType(id), Children: []Field{elem}}, nil

	case at.ID == TypeStruct && bt.ID == TypeStruct:
		children, err := mergeFieldSets(path, a.Children, b.Children, opts)
		if err != nil {
			return Field{}, err
		}
		return Field{Type: PrimitiveType(TypeStruct), Children: children}, nil

	case at.ID == TypeMap && bt.ID == TypeMap:
		key, err := mergeField(ChildPath(path, a.Children[0].Name), a.Children[0], b.Children[0], opts)
		if err != nil {
			return Field{}, err
		}
		value, err := mergeField(ChildPath(path, a.Children[1].Name), a.Children[1], b.Children[1], opts)
		if err != nil {
			return Field{}, err
		}
		return Field{Type: PrimitiveType(TypeMap), Children: []Field{key, value}}, nil

	case at.ID == TypeUnion && bt.ID == TypeUnion:
		variants, err := mergeVariantSets(path, a.Children, b.Children, opts)
		if err != nil {
			return Field{}, err
		}
		return Field{Type: PrimitiveType(TypeUnion), Children: variants}, nil

	case at.ID == TypeUnion || bt.ID == TypeUnion:
		// A union absorbs new observations only in permissive mode; under
		// strict rules a union against a differently-shaped type is
		// inadmissible.
		if opts.Strict {
			return Field{}, incompatible(path, at, bt)
		}
		return mergeIntoUnion(path, a, b, opts)
	}

	if opts.Strict {
		return Field{}, incompatible(path, at, bt)
	}
	return mergeIntoUnion(path, a, b, opts)
}

func incompatible(path string, a, b DataType) error {
	return arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeIncompatibleTypes,
		"cannot merge %s with %s", a, b).
		WithPath(path).
		WithDetail(arcaerrors.DetailExpected, a.String()).
		WithDetail(arcaerrors.DetailGot, b.String())
}

func isListKind(id TypeID) bool {
	return id == TypeList || id == TypeLargeList
}

// mergeIntegers widens two integer types: same signedness picks the wider
// width; an unsigned merged with a signed widens to the signed type of
// next-or-equal width that can hold both, capped at 64 bits.
func mergeIntegers(a, b DataType) DataType {
	as, bs := a.IsSignedInteger(), b.IsSignedInteger()
	aw, bw := a.BitWidth(), b.BitWidth()

	switch {
	case as == bs:
		w := aw
		if bw > w {
			w = bw
		}
		if as {
			return PrimitiveType(signedOfWidth(w))
		}
		return PrimitiveType(unsignedOfWidth(w))
	case as:
		return PrimitiveType(signedOfWidth(signedWidthFor(aw, bw)))
	default:
		return PrimitiveType(signedOfWidth(signedWidthFor(bw, aw)))
	}
}

// signedWidthFor picks the signed width holding a signed value of width sw
// and an unsigned value of width uw.
func signedWidthFor(sw, uw int) int {
	if uw < sw {
		return sw
	}
	if uw >= 64 {
		return 64
	}
	return uw * 2
}

func signedOfWidth(w int) TypeID {
	switch w {
	case 8:
		return TypeInt8
	case 16:
		return TypeInt16
	case 32:
		return TypeInt32
	default:
		return TypeInt64
	}
}

func unsignedOfWidth(w int) TypeID {
	switch w {
	case 8:
		return TypeUint8
	case 16:
		return TypeUint16
	case 32:
		return TypeUint32
	default:
		return TypeUint64
	}
}

func widerFloat(a, b DataType) TypeID {
	if a.ID == TypeFloat64 || b.ID == TypeFloat64 {
		return TypeFloat64
	}
	return TypeFloat32
}

// floatForInt merges an integer with a float: the result is the float of
// equal-or-greater bit width than the integer.
func floatForInt(intType, floatType DataType) TypeID {
	if floatType.ID == TypeFloat64 || intType.BitWidth() > 32 {
		return TypeFloat64
	}
	return TypeFloat32
}

func mergeDictionaries(path string, a, b Field, opts MergeOptions) (Field, error) {
	index := mergeIntegers(*a.Type.IndexType, *b.Type.IndexType)
	value, err := mergeTyped(path, Field{Type: *a.Type.ValueType}, Field{Type: *b.Type.ValueType}, opts)
	if err != nil {
		return Field{}, err
	}
	return Field{Type: DictionaryType(index, value.Type)}, nil
}

// mergeFieldSets merges two struct member lists by name: members present in
// only one side become nullable, members present in both merge recursively,
// order is first-seen.
func mergeFieldSets(path string, a, b []Field, opts MergeOptions) ([]Field, error) {
	inB := make(map[string]Field, len(b))
	for _, f := range b {
		inB[f.Name] = f
	}
	inA := make(map[string]struct{}, len(a))

	out := make([]Field, 0, len(a)+len(b))
	for _, f := range a {
		inA[f.Name] = struct{}{}
		if other, ok := inB[f.Name]; ok {
			merged, err := mergeField(ChildPath(path, f.Name), f, other, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, merged)
		} else {
			f.Nullable = true
			out = append(out, f)
		}
	}
	for _, f := range b {
		if _, ok := inA[f.Name]; !ok {
			f.Nullable = true
			out = append(out, f)
		}
	}
	return out, nil
}

// mergeVariantSets merges two union variant lists by variant name. Unlike
// struct members, one-sided variants keep their nullability: a variant that
// never appears in a record simply never gets selected.
func mergeVariantSets(path string, a, b []Field, opts MergeOptions) ([]Field, error) {
	inB := make(map[string]Field, len(b))
	for _, f := range b {
		inB[f.Name] = f
	}
	inA := make(map[string]struct{}, len(a))

	out := make([]Field, 0, len(a)+len(b))
	for _, f := range a {
		inA[f.Name] = struct{}{}
		if other, ok := inB[f.Name]; ok {
			merged, err := mergeField(ChildPath(path, f.Name), f, other, opts)
			if err != nil {
				return nil, err
			}
			out = append(out, merged)
		} else {
			out = append(out, f)
		}
	}
	for _, f := range b {
		if _, ok := inA[f.Name]; !ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// mergeIntoUnion is the permissive fallback: the two fields become (or
// extend) a union with one variant per type class, so repeated observations
// of the same class keep merging within their variant.
func mergeIntoUnion(path string, a, b Field, opts MergeOptions) (Field, error) {
	variants, err := mergeVariantSets(path, variantsOf(a), variantsOf(b), opts)
	if err != nil {
		return Field{}, err
	}
	return Field{Type: PrimitiveType(TypeUnion), Children: variants}, nil
}

func variantsOf(f Field) []Field {
	if f.Type.ID == TypeUnion {
		return f.Children
	}
	v := f
	v.Name = variantClass(f.Type)
	v.Nullable = false
	return []Field{v}
}

// VariantClass names the union variant for a type. Types that are mutually
// admissible under the lattice share a class so they collapse into a single
// variant instead of accumulating one variant per width. Serialization uses
// the same names to route plain values into class-named union variants.
func VariantClass(t DataType) string {
	return variantClass(t)
}

func variantClass(t DataType) string {
	switch {
	case t.IsInteger(), t.IsFloat():
		return "number"
	case t.IsString():
		return "utf8"
	case t.ID == TypeBool:
		return "bool"
	case isListKind(t.ID):
		return "list"
	case t.ID == TypeStruct:
		return "struct"
	case t.ID == TypeMap:
		return "map"
	case t.ID == TypeDictionary:
		return variantClass(*t.ValueType)
	default:
		return t.ID.String()
	}
}

func mergeMetadata(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range a {
		out[k] = v
	}
	return out
}
