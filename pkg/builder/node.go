// Package builder maintains the mutable column-builder tree that stages one
// conversion batch. Each schema field owns one Node wrapping the matching
// arrow builder; compound nodes own their children, and the append path
// through the parent is the only way to reach a child builder, so sibling
// columns can never drift out of alignment.
package builder

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/schema"
	"github.com/ajitpratap0/arca/pkg/walk"
)

// Node wraps one arrow builder and its schema position.
type Node struct {
	field schema.Field
	path  string
	b     array.Builder

	// children: element for lists, members for structs, key/value for maps,
	// variants for unions. Indexed the same way as field.Children.
	children []*Node
	byName   map[string]int

	ignoreUnknown bool
}

func newNode(path string, f schema.Field, b array.Builder, ignoreUnknown bool) (*Node, error) {
	n := &Node{field: f, path: path, b: b, ignoreUnknown: ignoreUnknown}

	switch f.Type.ID {
	case schema.TypeList:
		lb, ok := b.(*array.ListBuilder)
		if !ok {
			return nil, wrongBuilder(path, f, b)
		}
		elem, err := newNode(schema.ElementPath(path), f.Children[0], lb.ValueBuilder(), ignoreUnknown)
		if err != nil {
			return nil, err
		}
		n.children = []*Node{elem}

	case schema.TypeLargeList:
		lb, ok := b.(*array.LargeListBuilder)
		if !ok {
			return nil, wrongBuilder(path, f, b)
		}
		elem, err := newNode(schema.ElementPath(path), f.Children[0], lb.ValueBuilder(), ignoreUnknown)
		if err != nil {
			return nil, err
		}
		n.children = []*Node{elem}

	case schema.TypeStruct:
		sb, ok := b.(*array.StructBuilder)
		if !ok {
			return nil, wrongBuilder(path, f, b)
		}
		n.children = make([]*Node, len(f.Children))
		n.byName = make(map[string]int, len(f.Children))
		for i, c := range f.Children {
			child, err := newNode(schema.ChildPath(path, c.Name), c, sb.FieldBuilder(i), ignoreUnknown)
			if err != nil {
				return nil, err
			}
			n.children[i] = child
			n.byName[c.Name] = i
		}

	case schema.TypeMap:
		mb, ok := b.(*array.MapBuilder)
		if !ok {
			return nil, wrongBuilder(path, f, b)
		}
		key, err := newNode(schema.ChildPath(path, f.Children[0].Name), f.Children[0], mb.KeyBuilder(), ignoreUnknown)
		if err != nil {
			return nil, err
		}
		value, err := newNode(schema.ChildPath(path, f.Children[1].Name), f.Children[1], mb.ItemBuilder(), ignoreUnknown)
		if err != nil {
			return nil, err
		}
		n.children = []*Node{key, value}

	case schema.TypeUnion:
		ub, ok := b.(*array.DenseUnionBuilder)
		if !ok {
			return nil, wrongBuilder(path, f, b)
		}
		n.children = make([]*Node, len(f.Children))
		n.byName = make(map[string]int, len(f.Children))
		for i, v := range f.Children {
			child, err := newNode(schema.ChildPath(path, v.Name), v, ub.Child(i), ignoreUnknown)
			if err != nil {
				return nil, err
			}
			n.children[i] = child
			n.byName[v.Name] = i
		}

	case schema.TypeDictionary:
		if !f.Type.ValueType.IsString() {
			return nil, arcaerrors.Newf(arcaerrors.ErrorTypeConfig, arcaerrors.CodeInvalidConfig,
				"dictionary building supports string value types, got %s", f.Type.ValueType).
				WithPath(path)
		}
		if _, ok := b.(*array.BinaryDictionaryBuilder); !ok {
			return nil, wrongBuilder(path, f, b)
		}
	}

	return n, nil
}

// Path returns the dot/bracket field path of the node's schema position.
func (n *Node) Path() string {
	return n.path
}

// Field returns the schema field the node builds.
func (n *Node) Field() schema.Field {
	return n.field
}

// Len returns the current logical row count. Every immediate child of a
// compound node always reports the same count as its parent, except union
// variants, whose rows are distributed across children.
func (n *Node) Len() int {
	if n.b == nil {
		return 0
	}
	return n.b.Len()
}

// AppendValue appends one value at the current row position. For compound
// fields it routes recursively and advances every child by exactly one
// logical row, padding children the value does not supply.
func (n *Node) AppendValue(v walk.Value) error {
	if n.b == nil {
		return consumed(n.path)
	}
	if v.Kind == walk.KindNull {
		return n.AppendNull()
	}

	switch n.field.Type.ID {
	case schema.TypeNull:
		return n.mismatch(v)

	case schema.TypeBool:
		if v.Kind != walk.KindBool {
			return n.mismatch(v)
		}
		n.b.(*array.BooleanBuilder).Append(v.Bool)
		return nil

	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64:
		return n.appendSigned(v)

	case schema.TypeUint8, schema.TypeUint16, schema.TypeUint32, schema.TypeUint64:
		return n.appendUnsigned(v)

	case schema.TypeFloat32, schema.TypeFloat64:
		return n.appendFloat(v)

	case schema.TypeUtf8:
		if v.Kind != walk.KindString {
			return n.mismatch(v)
		}
		n.b.(*array.StringBuilder).Append(v.Str)
		return nil

	case schema.TypeLargeUtf8:
		if v.Kind != walk.KindString {
			return n.mismatch(v)
		}
		n.b.(*array.LargeStringBuilder).Append(v.Str)
		return nil

	case schema.TypeList:
		if v.Kind != walk.KindSeq {
			return n.mismatch(v)
		}
		elem := n.children[0]
		if int64(elem.Len())+int64(len(v.Seq)) > math.MaxInt32 {
			return arcaerrors.New(arcaerrors.ErrorTypeStructural, arcaerrors.CodeOffsetOverflow,
				"list offsets exceed 32 bits; use large_list").WithPath(n.path)
		}
		n.b.(*array.ListBuilder).Append(true)
		for _, item := range v.Seq {
			if err := elem.AppendValue(item); err != nil {
				return err
			}
		}
		return nil

	case schema.TypeLargeList:
		if v.Kind != walk.KindSeq {
			return n.mismatch(v)
		}
		n.b.(*array.LargeListBuilder).Append(true)
		elem := n.children[0]
		for _, item := range v.Seq {
			if err := elem.AppendValue(item); err != nil {
				return err
			}
		}
		return nil

	case schema.TypeStruct:
		if v.Kind != walk.KindStruct {
			return n.mismatch(v)
		}
		n.b.(*array.StructBuilder).Append(true)
		return appendStructMembers(n.path, v.Fields, n.children, n.byName, n.ignoreUnknown)

	case schema.TypeMap:
		return n.appendMap(v)

	case schema.TypeUnion:
		return n.appendUnion(v)

	case schema.TypeDictionary:
		if v.Kind != walk.KindString {
			return n.mismatch(v)
		}
		if err := n.b.(*array.BinaryDictionaryBuilder).AppendString(v.Str); err != nil {
			return arcaerrors.Wrap(err, arcaerrors.ErrorTypeInternal, arcaerrors.CodeTypeMismatch,
				"dictionary append failed").WithPath(n.path)
		}
		return nil
	}

	return arcaerrors.Newf(arcaerrors.ErrorTypeInternal, arcaerrors.CodeTypeMismatch,
		"no builder for type %s", n.field.Type).WithPath(n.path)
}

// AppendNull marks the current row invalid. Compound children are still
// advanced by one padding row so sibling lengths stay aligned.
func (n *Node) AppendNull() error {
	if n.b == nil {
		return consumed(n.path)
	}
	if !n.field.Nullable && n.field.Type.ID != schema.TypeNull {
		return arcaerrors.New(arcaerrors.ErrorTypeConversion, arcaerrors.CodeNullInNonNullable,
			"null value for non-nullable field").
			WithPath(n.path).WithRow(n.b.Len())
	}
	n.pad()
	return nil
}

// pad appends one placeholder row without consulting nullability. The arrow
// builders advance compound children themselves: struct nulls append a null
// to every member, list/map nulls repeat the previous offset, dense-union
// nulls advance exactly one variant.
func (n *Node) pad() {
	n.b.AppendNull()
}

func (n *Node) appendSigned(v walk.Value) error {
	var x int64
	switch v.Kind {
	case walk.KindInt:
		x = v.Int
	case walk.KindUint:
		if v.Uint > math.MaxInt64 {
			return n.rangeMismatch(v)
		}
		x = int64(v.Uint)
	default:
		return n.mismatch(v)
	}
	switch n.field.Type.ID {
	case schema.TypeInt8:
		if x < math.MinInt8 || x > math.MaxInt8 {
			return n.rangeMismatch(v)
		}
		n.b.(*array.Int8Builder).Append(int8(x))
	case schema.TypeInt16:
		if x < math.MinInt16 || x > math.MaxInt16 {
			return n.rangeMismatch(v)
		}
		n.b.(*array.Int16Builder).Append(int16(x))
	case schema.TypeInt32:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return n.rangeMismatch(v)
		}
		n.b.(*array.Int32Builder).Append(int32(x))
	default:
		n.b.(*array.Int64Builder).Append(x)
	}
	return nil
}

func (n *Node) appendUnsigned(v walk.Value) error {
	var x uint64
	switch v.Kind {
	case walk.KindUint:
		x = v.Uint
	case walk.KindInt:
		if v.Int < 0 {
			return n.rangeMismatch(v)
		}
		x = uint64(v.Int)
	default:
		return n.mismatch(v)
	}
	switch n.field.Type.ID {
	case schema.TypeUint8:
		if x > math.MaxUint8 {
			return n.rangeMismatch(v)
		}
		n.b.(*array.Uint8Builder).Append(uint8(x))
	case schema.TypeUint16:
		if x > math.MaxUint16 {
			return n.rangeMismatch(v)
		}
		n.b.(*array.Uint16Builder).Append(uint16(x))
	case schema.TypeUint32:
		if x > math.MaxUint32 {
			return n.rangeMismatch(v)
		}
		n.b.(*array.Uint32Builder).Append(uint32(x))
	default:
		n.b.(*array.Uint64Builder).Append(x)
	}
	return nil
}

func (n *Node) appendFloat(v walk.Value) error {
	var x float64
	switch v.Kind {
	case walk.KindFloat:
		x = v.Float
	case walk.KindInt:
		x = float64(v.Int)
	case walk.KindUint:
		x = float64(v.Uint)
	default:
		return n.mismatch(v)
	}
	if n.field.Type.ID == schema.TypeFloat32 {
		n.b.(*array.Float32Builder).Append(float32(x))
	} else {
		n.b.(*array.Float64Builder).Append(x)
	}
	return nil
}

// appendMap accepts an entry list or, for string-keyed maps, a struct value
// whose members become entries. The struct form is what a round trip through
// the deserializer produces.
func (n *Node) appendMap(v walk.Value) error {
	mb := n.b.(*array.MapBuilder)
	key, value := n.children[0], n.children[1]

	switch v.Kind {
	case walk.KindMap:
		mb.Append(true)
		for _, e := range v.Entries {
			if err := key.AppendValue(e.Key); err != nil {
				return err
			}
			if err := value.AppendValue(e.Value); err != nil {
				return err
			}
		}
		return nil
	case walk.KindStruct:
		if !key.field.Type.IsString() {
			return n.mismatch(v)
		}
		mb.Append(true)
		for _, m := range v.Fields {
			if err := key.AppendValue(walk.String(m.Name)); err != nil {
				return err
			}
			if err := value.AppendValue(m.Value); err != nil {
				return err
			}
		}
		return nil
	}
	return n.mismatch(v)
}

// appendUnion routes a value to one variant. Tagged values select by tag
// name; plain values select the variant named after their type class.
func (n *Node) appendUnion(v walk.Value) error {
	ub := n.b.(*array.DenseUnionBuilder)

	name := v.Tag
	inner := v
	if v.Kind == walk.KindVariant {
		inner = walk.Null()
		if v.Inner != nil {
			inner = *v.Inner
		}
	} else {
		name = valueClass(v)
	}

	idx, ok := n.byName[name]
	if !ok {
		return arcaerrors.Newf(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
			"no union variant %q", name).
			WithPath(n.path).
			WithDetail(arcaerrors.DetailExpected, n.field.Type.String()).
			WithDetail(arcaerrors.DetailGot, name)
	}
	ub.Append(arrow.UnionTypeCode(idx))
	child := n.children[idx]
	if inner.Kind == walk.KindNull {
		// A unit variant carries no payload; the child row is a placeholder
		// regardless of the variant's nullability.
		child.pad()
		return nil
	}
	return child.AppendValue(inner)
}

// valueClass mirrors the class names the permissive lattice gives union
// variants, so plain values land in the variant their class traced into.
func valueClass(v walk.Value) string {
	switch v.Kind {
	case walk.KindInt, walk.KindUint, walk.KindFloat:
		return "number"
	case walk.KindString:
		return "utf8"
	case walk.KindBool:
		return "bool"
	case walk.KindSeq:
		return "list"
	case walk.KindStruct:
		return "struct"
	case walk.KindMap:
		return "map"
	}
	return v.Kind.String()
}

// Finish converts the staged column into an immutable array, consuming the
// node. Any further append fails with builder_consumed.
func (n *Node) Finish() (arrow.Array, error) {
	if n.b == nil {
		return nil, consumed(n.path)
	}
	arr := n.b.NewArray()
	n.release()
	return arr, nil
}

// release drops the builder reference and marks the whole subtree consumed.
// Child builders are owned by the parent arrow builder, so only the root
// holds a reference to release.
func (n *Node) release() {
	if n.b != nil {
		n.b.Release()
	}
	n.markConsumed()
}

func (n *Node) markConsumed() {
	n.b = nil
	for _, c := range n.children {
		c.markConsumed()
	}
}

// appendStructMembers routes named members into child nodes by name,
// append-nulling declared members the value does not carry. Shared by struct
// nodes and the top-level record routing in Tree.
func appendStructMembers(path string, members []walk.StructField, nodes []*Node, byName map[string]int, ignoreUnknown bool) error {
	seen := make([]bool, len(nodes))
	for _, m := range members {
		idx, ok := byName[m.Name]
		if !ok {
			if ignoreUnknown {
				continue
			}
			return arcaerrors.New(arcaerrors.ErrorTypeConversion, arcaerrors.CodeUnknownField,
				"record field not declared in schema").
				WithPath(schema.ChildPath(path, m.Name))
		}
		if seen[idx] {
			return arcaerrors.New(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
				"duplicate record field").
				WithPath(schema.ChildPath(path, m.Name))
		}
		seen[idx] = true
		if err := nodes[idx].AppendValue(m.Value); err != nil {
			return err
		}
	}
	for i, node := range nodes {
		if seen[i] {
			continue
		}
		if !node.field.Nullable {
			return arcaerrors.New(arcaerrors.ErrorTypeConversion, arcaerrors.CodeMissingField,
				"non-nullable field absent from record").
				WithPath(node.path)
		}
		if err := node.AppendNull(); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) mismatch(v walk.Value) error {
	return arcaerrors.New(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
		"value does not match field type").
		WithPath(n.path).
		WithDetail(arcaerrors.DetailExpected, n.field.Type.String()).
		WithDetail(arcaerrors.DetailGot, v.Kind.String())
}

func (n *Node) rangeMismatch(v walk.Value) error {
	return arcaerrors.New(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
		"integer value out of range for field type").
		WithPath(n.path).
		WithDetail(arcaerrors.DetailExpected, n.field.Type.String()).
		WithDetail(arcaerrors.DetailGot, v.GoString())
}

func consumed(path string) error {
	return arcaerrors.New(arcaerrors.ErrorTypeInternal, arcaerrors.CodeBuilderConsumed,
		"builder already finished").WithPath(path)
}

func wrongBuilder(path string, f schema.Field, b array.Builder) error {
	return arcaerrors.Newf(arcaerrors.ErrorTypeInternal, arcaerrors.CodeTypeMismatch,
		"arrow allocated %T for field type %s", b, f.Type).WithPath(path)
}
