package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Field{
		schema.NewField("id", schema.TypeInt64, false),
		schema.NewField("name", schema.TypeUtf8, true),
		schema.ListOf("tags", schema.NewField("item", schema.TypeUtf8, false), true),
	})
	require.NoError(t, err)
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w, err := NewWriter(&buf, WriterConfig{Schema: testSchema(t)})
	require.NoError(t, err)

	rows := []map[string]interface{}{
		{"id": int64(1), "name": "ada", "tags": []interface{}{"x", "y"}},
		{"id": int64(2), "name": nil, "tags": []interface{}{}},
		{"id": int64(3), "name": "linus", "tags": nil},
	}
	for _, row := range rows {
		require.NoError(t, w.WriteAny(row))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, int64(3), w.RowsWritten())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 3, r.Schema().NumFields())

	got, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1), got[0]["id"])
	assert.Equal(t, "ada", got[0]["name"])
	assert.Equal(t, []interface{}{"x", "y"}, got[0]["tags"])

	assert.Nil(t, got[1]["name"])
	assert.Equal(t, []interface{}{}, got[1]["tags"])

	assert.Nil(t, got[2]["tags"])
}

func TestWriterBatchSplitting(t *testing.T) {
	var buf bytes.Buffer

	s, err := schema.New([]schema.Field{schema.NewField("n", schema.TypeInt64, false)})
	require.NoError(t, err)

	w, err := NewWriter(&buf, WriterConfig{Schema: s, BatchSize: 4})
	require.NoError(t, err)

	const total = 10
	for i := 0; i < total; i++ {
		require.NoError(t, w.WriteAny(map[string]interface{}{"n": int64(i)}))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, int64(total), w.RowsWritten())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	// Records stream across batch boundaries in write order.
	for i := 0; i < total; i++ {
		require.True(t, r.HasNext())
		rec, err := r.Next()
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, int64(i), rec["n"])
	}
	assert.False(t, r.HasNext())
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestWriterFlush(t *testing.T) {
	var buf bytes.Buffer

	s, err := schema.New([]schema.Field{schema.NewField("n", schema.TypeInt64, false)})
	require.NoError(t, err)

	w, err := NewWriter(&buf, WriterConfig{Schema: s})
	require.NoError(t, err)

	require.NoError(t, w.WriteAny(map[string]interface{}{"n": int64(1)}))
	assert.Equal(t, int64(0), w.RowsWritten())

	require.NoError(t, w.Flush())
	assert.Equal(t, int64(1), w.RowsWritten())

	require.NoError(t, w.Close())
}

func TestWriterRequiresSchema(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, WriterConfig{})
	require.Error(t, err)
	assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeInvalidConfig))
}

func TestWriterRejectsBadRecord(t *testing.T) {
	var buf bytes.Buffer

	s, err := schema.New([]schema.Field{schema.NewField("n", schema.TypeInt64, false)})
	require.NoError(t, err)

	w, err := NewWriter(&buf, WriterConfig{Schema: s})
	require.NoError(t, err)

	require.NoError(t, w.WriteAny(map[string]interface{}{"other": "x"}))
	err = w.Flush()
	require.Error(t, err)
	assert.True(t, arcaerrors.IsCode(err, arcaerrors.CodeUnknownField))
}

func TestReaderRejectsGarbage(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not an arrow file")))
	require.Error(t, err)
}
