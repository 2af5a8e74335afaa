package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/schema"
)

func TestTraceNullablePromotion(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": int64(1)},
		{"a": int64(2)},
		{"a": nil},
	}
	s, err := TraceAny(rows, DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, 1, s.NumFields())
	f := s.Fields()[0]
	assert.Equal(t, "a", f.Name)
	assert.Equal(t, schema.TypeInt64, f.Type.ID)
	assert.True(t, f.Nullable)
}

func TestTraceIntegerWidening(t *testing.T) {
	rows := []map[string]interface{}{
		{"n": int16(1)},
		{"n": uint32(2)},
	}
	s, err := TraceAny(rows, DefaultOptions())
	require.NoError(t, err)

	f := s.Fields()[0]
	assert.Equal(t, schema.TypeInt64, f.Type.ID)
	assert.False(t, f.Nullable)
}

func TestTraceEmptyListStaysOpen(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": []interface{}{int64(1), int64(2)}},
		{"a": []interface{}{}},
		{"a": []interface{}{int64(3)}},
	}
	s, err := TraceAny(rows, DefaultOptions())
	require.NoError(t, err)

	f := s.Fields()[0]
	require.Equal(t, schema.TypeList, f.Type.ID)
	require.Len(t, f.Children, 1)
	elem := f.Children[0]
	assert.Equal(t, schema.TypeInt64, elem.Type.ID)
	// An empty list carries no element observations, so it must not force
	// nullability onto elements seen in other records.
	assert.False(t, elem.Nullable)
}

func TestTraceOnlyEmptyListFails(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": []interface{}{}},
	}
	_, err := TraceAny(rows, DefaultOptions())
	require.Error(t, err)
	assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeEmptySchema))
	assert.Equal(t, "a[]", arcaerrors.PathOf(err))
}

func TestTraceAbsentStructFieldNullable(t *testing.T) {
	rows := []map[string]interface{}{
		{"u": map[string]interface{}{"id": int64(1), "name": "ada"}},
		{"u": map[string]interface{}{"id": int64(2)}},
	}
	s, err := TraceAny(rows, DefaultOptions())
	require.NoError(t, err)

	u := s.Fields()[0]
	require.Equal(t, schema.TypeStruct, u.Type.ID)
	require.Len(t, u.Children, 2)
	assert.Equal(t, "id", u.Children[0].Name)
	assert.False(t, u.Children[0].Nullable)
	assert.Equal(t, "name", u.Children[1].Name)
	assert.True(t, u.Children[1].Nullable)
}

func TestTraceAbsentTopLevelFieldNullable(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": int64(1), "b": true},
		{"a": int64(2)},
	}
	s, err := TraceAny(rows, DefaultOptions())
	require.NoError(t, err)

	b, ok := s.FieldByName("b")
	require.True(t, ok)
	assert.Equal(t, schema.TypeBool, b.Type.ID)
	assert.True(t, b.Nullable)
}

func TestTraceStringThreshold(t *testing.T) {
	long := strings.Repeat("x", 64)

	t.Run("escalates at threshold", func(t *testing.T) {
		rows := []map[string]interface{}{
			{"s": "short"},
			{"s": long},
		}
		s, err := TraceAny(rows, Options{Strict: true, StringSizeThreshold: 64})
		require.NoError(t, err)
		assert.Equal(t, schema.TypeLargeUtf8, s.Fields()[0].Type.ID)
	})

	t.Run("disabled by default", func(t *testing.T) {
		rows := []map[string]interface{}{{"s": long}}
		s, err := TraceAny(rows, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, schema.TypeUtf8, s.Fields()[0].Type.ID)
	})
}

func TestTraceMaxSamples(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": int64(1)},
		{"a": int64(2)},
		{"a": "not a number"},
	}

	_, err := TraceAny(rows, DefaultOptions())
	require.Error(t, err)

	s, err := TraceAny(rows, Options{Strict: true, MaxSamples: 2})
	require.NoError(t, err)
	assert.Equal(t, schema.TypeInt64, s.Fields()[0].Type.ID)
}

func TestTraceStrictConflict(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": int64(1)},
		{"a": "mixed"},
	}
	_, err := TraceAny(rows, DefaultOptions())
	require.Error(t, err)
	assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeIncompatibleTypes))

	var ae *arcaerrors.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 1, ae.Details[arcaerrors.DetailRecordIndex])
}

func TestTracePermissiveUnion(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": int64(1)},
		{"a": "mixed"},
		{"a": true},
	}
	s, err := TraceAny(rows, Options{Strict: false})
	require.NoError(t, err)

	f := s.Fields()[0]
	require.Equal(t, schema.TypeUnion, f.Type.ID)
	names := make([]string, 0, len(f.Children))
	for _, v := range f.Children {
		names = append(names, v.Name)
	}
	assert.ElementsMatch(t, []string{"number", "utf8", "bool"}, names)
}

func TestTraceTypeHints(t *testing.T) {
	hints, err := schema.New([]schema.Field{
		schema.NewField("id", schema.TypeUint64, false),
	})
	require.NoError(t, err)

	rows := []map[string]interface{}{
		// Observed as int64; the hint must win.
		{"id": int64(1), "name": "ada"},
	}
	s, err := TraceAny(rows, Options{Strict: true, TypeHints: hints})
	require.NoError(t, err)

	require.Equal(t, 2, s.NumFields())
	assert.Equal(t, "id", s.Fields()[0].Name)
	assert.Equal(t, schema.TypeUint64, s.Fields()[0].Type.ID)
	assert.Equal(t, "name", s.Fields()[1].Name)
	assert.Equal(t, schema.TypeUtf8, s.Fields()[1].Type.ID)
}

func TestTraceNoRecordsNoHints(t *testing.T) {
	_, err := TraceAny(nil, DefaultOptions())
	require.Error(t, err)
	assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeEmptySchema))
}

func TestTraceNoRecordsWithHints(t *testing.T) {
	hints, err := schema.New([]schema.Field{
		schema.NewField("id", schema.TypeInt64, false),
	})
	require.NoError(t, err)

	s, err := TraceAny(nil, Options{Strict: true, TypeHints: hints})
	require.NoError(t, err)
	assert.Equal(t, 1, s.NumFields())
}

func TestTraceAlwaysNullField(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": nil},
		{"a": nil},
	}
	s, err := TraceAny(rows, DefaultOptions())
	require.NoError(t, err)

	f := s.Fields()[0]
	assert.Equal(t, schema.TypeNull, f.Type.ID)
	assert.True(t, f.Nullable)
}

func TestTraceNestedMap(t *testing.T) {
	rows := []map[string]interface{}{
		{"attrs": map[string]interface{}{"height": 1.5, "width": 2.0}},
	}
	s, err := TraceAny(rows, DefaultOptions())
	require.NoError(t, err)

	// String-keyed maps walk as structs; a map column needs an explicit
	// KindMap walk or a schema hint.
	f := s.Fields()[0]
	assert.Equal(t, schema.TypeStruct, f.Type.ID)
	require.Len(t, f.Children, 2)
	assert.Equal(t, "height", f.Children[0].Name)
	assert.Equal(t, schema.TypeFloat64, f.Children[0].Type.ID)
}
