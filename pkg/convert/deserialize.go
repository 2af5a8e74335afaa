package convert

import (
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/schema"
)

// Reader is a lazy, single-pass, non-restartable view over one batch of
// arrays: each Next reconstructs one record. Early termination is always
// safe since the arrays are immutable. A Reader is not safe for concurrent
// use.
type Reader struct {
	schema *schema.Schema
	arrays []arrow.Array
	length int
	row    int
}

// NewReader validates that the arrays match the schema's top-level arity,
// types and lengths, then positions the reader before the first row. The
// reader does not retain the arrays; the caller keeps them alive until
// reading ends.
func NewReader(s *schema.Schema, arrays []arrow.Array) (*Reader, error) {
	if len(arrays) != s.NumFields() {
		return nil, arcaerrors.Newf(arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
			"schema has %d fields but %d arrays given", s.NumFields(), len(arrays)).
			WithDetail(arcaerrors.DetailExpected, s.NumFields()).
			WithDetail(arcaerrors.DetailGot, len(arrays))
	}

	length := 0
	for i, arr := range arrays {
		f := s.Field(i)
		af, err := schema.FieldToArrow(f)
		if err != nil {
			return nil, err
		}
		if !arrow.TypeEqual(af.Type, arr.DataType()) {
			return nil, arcaerrors.Newf(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
				"array type %s does not match field type %s", arr.DataType(), f.Type).
				WithPath(f.Name).
				WithDetail(arcaerrors.DetailExpected, f.Type.String()).
				WithDetail(arcaerrors.DetailGot, arr.DataType().String())
		}
		if i == 0 {
			length = arr.Len()
			continue
		}
		if arr.Len() != length {
			return nil, arcaerrors.Newf(arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
				"column %q has %d rows, want %d", f.Name, arr.Len(), length).
				WithPath(f.Name).
				WithDetail(arcaerrors.DetailExpected, length).
				WithDetail(arcaerrors.DetailGot, arr.Len())
		}
	}

	return &Reader{schema: s, arrays: arrays, length: length}, nil
}

// Len returns the total number of rows in the batch.
func (r *Reader) Len() int {
	return r.length
}

// HasNext reports whether another record remains.
func (r *Reader) HasNext() bool {
	return r.row < r.length
}

// Next reconstructs the next record. Returns nil after the last row.
func (r *Reader) Next() (map[string]interface{}, error) {
	if r.row >= r.length {
		return nil, nil
	}
	row := r.row
	record := make(map[string]interface{}, r.schema.NumFields())
	for i, arr := range r.arrays {
		f := r.schema.Field(i)
		v, err := valueAt(f.Name, f, arr, row)
		if err != nil {
			return nil, err
		}
		record[f.Name] = v
	}
	r.row++
	return record, nil
}

// ReadAll drains the remaining rows into a slice of records.
func (r *Reader) ReadAll() ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, r.length-r.row)
	for r.HasNext() {
		rec, err := r.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Deserialize reconstructs all records of a batch in one call.
func Deserialize(s *schema.Schema, arrays []arrow.Array) ([]map[string]interface{}, error) {
	r, err := NewReader(s, arrays)
	if err != nil {
		return nil, err
	}
	return r.ReadAll()
}

// valueAt reconstructs the value of one field at one row. Null validity
// bits come back as nil.
func valueAt(path string, f schema.Field, arr arrow.Array, row int) (interface{}, error) {
	if arr.IsNull(row) {
		return nil, nil
	}

	switch c := arr.(type) {
	case *array.Boolean:
		return c.Value(row), nil
	case *array.Int8:
		return c.Value(row), nil
	case *array.Int16:
		return c.Value(row), nil
	case *array.Int32:
		return c.Value(row), nil
	case *array.Int64:
		return c.Value(row), nil
	case *array.Uint8:
		return c.Value(row), nil
	case *array.Uint16:
		return c.Value(row), nil
	case *array.Uint32:
		return c.Value(row), nil
	case *array.Uint64:
		return c.Value(row), nil
	case *array.Float32:
		return c.Value(row), nil
	case *array.Float64:
		return c.Value(row), nil

	case *array.String:
		s := c.Value(row)
		if !utf8.ValidString(s) {
			return nil, invalidUTF8(path, row)
		}
		return s, nil
	case *array.LargeString:
		s := c.Value(row)
		if !utf8.ValidString(s) {
			return nil, invalidUTF8(path, row)
		}
		return s, nil

	case *array.List:
		start, end := c.ValueOffsets(row)
		return sliceValues(schema.ElementPath(path), f.Children[0], c.ListValues(), start, end)
	case *array.LargeList:
		start, end := c.ValueOffsets(row)
		return sliceValues(schema.ElementPath(path), f.Children[0], c.ListValues(), start, end)

	case *array.Struct:
		out := make(map[string]interface{}, len(f.Children))
		for i, child := range f.Children {
			v, err := valueAt(schema.ChildPath(path, child.Name), child, c.Field(i), row)
			if err != nil {
				return nil, err
			}
			out[child.Name] = v
		}
		return out, nil

	case *array.Map:
		return mapValueAt(path, f, c, row)

	case *array.DenseUnion:
		childID := c.ChildID(row)
		variant := f.Children[childID]
		return valueAt(schema.ChildPath(path, variant.Name), variant, c.Field(childID), int(c.ValueOffset(row)))

	case *array.Dictionary:
		return dictionaryValueAt(path, f, c, row)
	}

	return nil, arcaerrors.Newf(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
		"array type %s has no record mapping", arr.DataType()).
		WithPath(path).WithRow(row)
}

func sliceValues(path string, elem schema.Field, values arrow.Array, start, end int64) (interface{}, error) {
	out := make([]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		v, err := valueAt(path, elem, values, int(i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// mapValueAt reads the row's key/value sub-range. String-keyed maps come
// back as map[string]interface{}; other key types come back as an ordered
// slice of key/value pairs, since their keys have no native Go map shape
// that survives a round trip.
func mapValueAt(path string, f schema.Field, c *array.Map, row int) (interface{}, error) {
	start, end := c.ValueOffsets(row)
	keyField, valueField := f.Children[0], f.Children[1]
	keyPath := schema.ChildPath(path, keyField.Name)
	valuePath := schema.ChildPath(path, valueField.Name)

	if keyField.Type.IsString() {
		out := make(map[string]interface{}, end-start)
		for i := start; i < end; i++ {
			k, err := valueAt(keyPath, keyField, c.Keys(), int(i))
			if err != nil {
				return nil, err
			}
			v, err := valueAt(valuePath, valueField, c.Items(), int(i))
			if err != nil {
				return nil, err
			}
			out[k.(string)] = v
		}
		return out, nil
	}

	out := make([]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		k, err := valueAt(keyPath, keyField, c.Keys(), int(i))
		if err != nil {
			return nil, err
		}
		v, err := valueAt(valuePath, valueField, c.Items(), int(i))
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{"key": k, "value": v})
	}
	return out, nil
}

func dictionaryValueAt(path string, f schema.Field, c *array.Dictionary, row int) (interface{}, error) {
	idx := c.GetValueIndex(row)
	values := schema.Field{Name: f.Name, Type: *f.Type.ValueType, Nullable: true}
	return valueAt(path, values, c.Dictionary(), idx)
}

func invalidUTF8(path string, row int) error {
	return arcaerrors.New(arcaerrors.ErrorTypeConversion, arcaerrors.CodeInvalidUTF8,
		"string bytes are not valid UTF-8").
		WithPath(path).WithRow(row)
}
