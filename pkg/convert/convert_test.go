package convert

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/schema"
	"github.com/ajitpratap0/arca/pkg/trace"
)

func mustSchema(t *testing.T, fields ...schema.Field) *schema.Schema {
	t.Helper()
	s, err := schema.New(fields)
	require.NoError(t, err)
	return s
}

func releaseAll(arrays []arrow.Array) {
	for _, a := range arrays {
		a.Release()
	}
}

func TestSerializeValidity(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := mustSchema(t, schema.NewField("a", schema.TypeInt64, true))
	rows := []map[string]interface{}{
		{"a": int64(1)},
		{"a": int64(2)},
		{"a": nil},
	}
	arrays, err := SerializeAny(s, rows, Options{Allocator: mem})
	require.NoError(t, err)
	defer releaseAll(arrays)

	require.Len(t, arrays, 1)
	col := arrays[0].(*array.Int64)
	require.Equal(t, 3, col.Len())
	assert.Equal(t, int64(1), col.Value(0))
	assert.Equal(t, int64(2), col.Value(1))
	assert.True(t, col.IsValid(0))
	assert.True(t, col.IsValid(1))
	assert.True(t, col.IsNull(2))
}

func TestSerializeListOffsets(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := mustSchema(t, schema.ListOf("a", schema.NewField("item", schema.TypeInt64, false), false))
	rows := []map[string]interface{}{
		{"a": []interface{}{int64(1), int64(2)}},
		{"a": []interface{}{}},
		{"a": []interface{}{int64(3)}},
	}
	arrays, err := SerializeAny(s, rows, Options{Allocator: mem})
	require.NoError(t, err)
	defer releaseAll(arrays)

	list := arrays[0].(*array.List)
	require.Equal(t, 3, list.Len())
	assert.Equal(t, []int32{0, 2, 2, 3}, list.Offsets())

	values := list.ListValues().(*array.Int64)
	require.Equal(t, 3, values.Len())
	assert.Equal(t, int64(1), values.Value(0))
	assert.Equal(t, int64(3), values.Value(2))
}

func TestSerializeMissingFieldAtomic(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := mustSchema(t,
		schema.NewField("a", schema.TypeInt64, false),
		schema.NewField("b", schema.TypeUtf8, false),
	)
	rows := []map[string]interface{}{
		{"a": int64(1)},
	}
	arrays, err := SerializeAny(s, rows, Options{Allocator: mem})
	require.Error(t, err)
	assert.Nil(t, arrays)
	assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeMissingField))
	assert.Equal(t, "b", arcaerrors.PathOf(err))

	var ae *arcaerrors.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 0, ae.Details[arcaerrors.DetailRecordIndex])
}

func TestSerializeUnknownField(t *testing.T) {
	s := mustSchema(t, schema.NewField("a", schema.TypeInt64, false))
	rows := []map[string]interface{}{
		{"a": int64(1), "extra": "x"},
	}

	_, err := SerializeAny(s, rows, Options{})
	require.Error(t, err)
	assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeUnknownField))

	arrays, err := SerializeAny(s, rows, Options{IgnoreUnknownFields: true})
	require.NoError(t, err)
	defer releaseAll(arrays)
	assert.Equal(t, 1, arrays[0].Len())
}

func TestRoundTripNested(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := mustSchema(t,
		schema.NewField("id", schema.TypeInt64, false),
		schema.ListOf("tags", schema.NewField("item", schema.TypeUtf8, false), true),
		schema.StructOf("address", true,
			schema.NewField("street", schema.TypeUtf8, false),
			schema.NewField("zip", schema.TypeUint32, true)),
	)
	rows := []map[string]interface{}{
		{
			"id":      int64(1),
			"tags":    []interface{}{"x", "y"},
			"address": map[string]interface{}{"street": "Main", "zip": uint32(1011)},
		},
		{
			"id":      int64(2),
			"tags":    nil,
			"address": nil,
		},
	}

	arrays, err := SerializeAny(s, rows, Options{Allocator: mem})
	require.NoError(t, err)
	defer releaseAll(arrays)

	got, err := Deserialize(s, arrays)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0]["id"])
	assert.Equal(t, []interface{}{"x", "y"}, got[0]["tags"])
	addr, ok := got[0]["address"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Main", addr["street"])
	assert.Equal(t, uint32(1011), addr["zip"])

	assert.Equal(t, int64(2), got[1]["id"])
	assert.Nil(t, got[1]["tags"])
	assert.Nil(t, got[1]["address"])
}

func TestRoundTripRowsAfterNullStruct(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := mustSchema(t,
		schema.StructOf("address", true,
			schema.NewField("street", schema.TypeUtf8, false),
			schema.NewField("zip", schema.TypeUint32, true)),
		schema.ListOf("tags", schema.NewField("item", schema.TypeUtf8, false), true),
	)
	rows := []map[string]interface{}{
		{"address": map[string]interface{}{"street": "Main", "zip": uint32(1011)}, "tags": []interface{}{"x"}},
		{"address": nil, "tags": nil},
		{"address": map[string]interface{}{"street": "Second", "zip": nil}, "tags": []interface{}{"y", "z"}},
	}

	arrays, err := SerializeAny(s, rows, Options{Allocator: mem})
	require.NoError(t, err)
	defer releaseAll(arrays)

	// Every column stays row-aligned with the batch, nulls included.
	for _, arr := range arrays {
		require.Equal(t, 3, arr.Len())
	}
	st := arrays[0].(*array.Struct)
	require.Equal(t, 3, st.Field(0).Len())
	require.Equal(t, 3, st.Field(1).Len())

	got, err := Deserialize(s, arrays)
	require.NoError(t, err)
	require.Len(t, got, 3)

	first, ok := got[0]["address"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Main", first["street"])
	assert.Equal(t, []interface{}{"x"}, got[0]["tags"])

	assert.Nil(t, got[1]["address"])
	assert.Nil(t, got[1]["tags"])

	// Rows after the null must come back intact, not shifted.
	third, ok := got[2]["address"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Second", third["street"])
	assert.Nil(t, third["zip"])
	assert.Equal(t, []interface{}{"y", "z"}, got[2]["tags"])
}

func TestRoundTripTracedSchema(t *testing.T) {
	rows := []map[string]interface{}{
		{"name": "ada", "score": 1.5},
		{"name": "linus", "score": nil},
	}
	s, err := trace.TraceAny(rows, trace.DefaultOptions())
	require.NoError(t, err)

	arrays, err := SerializeAny(s, rows, Options{})
	require.NoError(t, err)
	defer releaseAll(arrays)

	got, err := Deserialize(s, arrays)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ada", got[0]["name"])
	assert.Equal(t, 1.5, got[0]["score"])
	assert.Nil(t, got[1]["score"])
}

func TestRoundTripMap(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := mustSchema(t, schema.MapOf("attrs",
		schema.NewField("key", schema.TypeUtf8, false),
		schema.NewField("value", schema.TypeFloat64, true),
		true))

	arrays, err := SerializeAny(s, []map[string]interface{}{
		{"attrs": map[string]interface{}{"height": 1.5, "width": 2.0}},
		{"attrs": nil},
	}, Options{Allocator: mem})
	require.NoError(t, err)
	defer releaseAll(arrays)

	got, err := Deserialize(s, arrays)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, map[string]interface{}{"height": 1.5, "width": 2.0}, got[0]["attrs"])
	assert.Nil(t, got[1]["attrs"])
}

func TestReaderLazy(t *testing.T) {
	s := mustSchema(t, schema.NewField("a", schema.TypeInt64, false))
	arrays, err := SerializeAny(s, []map[string]interface{}{
		{"a": int64(1)}, {"a": int64(2)},
	}, Options{})
	require.NoError(t, err)
	defer releaseAll(arrays)

	r, err := NewReader(s, arrays)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	require.True(t, r.HasNext())
	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), first["a"])

	require.True(t, r.HasNext())
	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), second["a"])

	assert.False(t, r.HasNext())
	done, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, done)
}

func TestReaderValidation(t *testing.T) {
	s := mustSchema(t,
		schema.NewField("a", schema.TypeInt64, false),
		schema.NewField("b", schema.TypeUtf8, true),
	)
	arrays, err := SerializeAny(s, []map[string]interface{}{
		{"a": int64(1), "b": "x"},
	}, Options{})
	require.NoError(t, err)
	defer releaseAll(arrays)

	t.Run("arity mismatch", func(t *testing.T) {
		_, err := NewReader(s, arrays[:1])
		require.Error(t, err)
		assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeLengthMismatch))
	})

	t.Run("type mismatch", func(t *testing.T) {
		swapped := []arrow.Array{arrays[1], arrays[0]}
		_, err := NewReader(s, swapped)
		require.Error(t, err)
		assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeTypeMismatch))
	})
}

func TestDeserializeUnion(t *testing.T) {
	s := mustSchema(t, schema.UnionOf("v", true,
		schema.NewField("number", schema.TypeInt64, false),
		schema.NewField("utf8", schema.TypeUtf8, false),
	))
	arrays, err := SerializeAny(s, []map[string]interface{}{
		{"v": int64(7)},
		{"v": "x"},
		{"v": int64(9)},
	}, Options{})
	require.NoError(t, err)
	defer releaseAll(arrays)

	got, err := Deserialize(s, arrays)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// The union wrapper is transparent on the way out.
	assert.Equal(t, int64(7), got[0]["v"])
	assert.Equal(t, "x", got[1]["v"])
	assert.Equal(t, int64(9), got[2]["v"])
}

func TestDeserializeDictionary(t *testing.T) {
	s := mustSchema(t, schema.Field{
		Name: "country",
		Type: schema.DictionaryType(schema.PrimitiveType(schema.TypeInt32), schema.PrimitiveType(schema.TypeUtf8)),
	})
	arrays, err := SerializeAny(s, []map[string]interface{}{
		{"country": "de"},
		{"country": "fr"},
		{"country": "de"},
	}, Options{})
	require.NoError(t, err)
	defer releaseAll(arrays)

	got, err := Deserialize(s, arrays)
	require.NoError(t, err)
	assert.Equal(t, "de", got[0]["country"])
	assert.Equal(t, "fr", got[1]["country"])
	assert.Equal(t, "de", got[2]["country"])
}

func TestDeserializeInvalidUTF8(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewStringBuilder(mem)
	b.Append(string([]byte{0xff, 0xfe}))
	arr := b.NewArray()
	b.Release()
	defer arr.Release()

	s := mustSchema(t, schema.NewField("s", schema.TypeUtf8, false))
	_, err := Deserialize(s, []arrow.Array{arr})
	require.Error(t, err)
	assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeInvalidUTF8))
	assert.Equal(t, "s", arcaerrors.PathOf(err))
}

func TestNewRecordBatch(t *testing.T) {
	s := mustSchema(t,
		schema.NewField("a", schema.TypeInt64, false),
		schema.NewField("b", schema.TypeUtf8, true),
	)
	arrays, err := SerializeAny(s, []map[string]interface{}{
		{"a": int64(1), "b": "x"},
		{"a": int64(2), "b": nil},
	}, Options{})
	require.NoError(t, err)
	defer releaseAll(arrays)

	rec, err := NewRecordBatch(s, arrays)
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, int64(2), rec.NumCols())

	t.Run("arity mismatch", func(t *testing.T) {
		_, err := NewRecordBatch(s, arrays[:1])
		require.Error(t, err)
		assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeLengthMismatch))
	})
}
