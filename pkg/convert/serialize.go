// Package convert turns generic records into Arrow arrays and back. Both
// directions are single-pass and batch-atomic: a conversion either yields a
// complete, length-aligned result or an error with full path context, never
// partially-built output.
package convert

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/builder"
	"github.com/ajitpratap0/arca/pkg/schema"
	"github.com/ajitpratap0/arca/pkg/walk"
)

// Options controls serialization.
type Options struct {
	// IgnoreUnknownFields drops record fields the schema does not declare.
	IgnoreUnknownFields bool

	// Allocator defaults to the arrow Go allocator.
	Allocator memory.Allocator

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Serialize converts records into one immutable array per top-level schema
// field, in schema order. Record order maps 1:1 to row order. On any error
// the staged batch is abandoned and no arrays are returned.
func Serialize(s *schema.Schema, records []walk.Walkable, opts Options) ([]arrow.Array, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tree, err := builder.NewTree(opts.Allocator, s, builder.Options{
		IgnoreUnknownFields: opts.IgnoreUnknownFields,
	})
	if err != nil {
		return nil, err
	}
	defer tree.Release()

	collector := walk.NewCollector()
	for i, rec := range records {
		collector.Reset()
		if err := rec.Walk(collector); err != nil {
			return nil, withRecordIndex(err, i)
		}
		value, err := collector.Result()
		if err != nil {
			return nil, withRecordIndex(err, i)
		}
		if err := tree.AppendRecord(value); err != nil {
			return nil, withRecordIndex(err, i)
		}
	}

	arrays, err := tree.Finish()
	if err != nil {
		return nil, err
	}
	logger.Debug("batch serialized",
		zap.Int("records", len(records)),
		zap.Int("columns", len(arrays)))
	return arrays, nil
}

// SerializeAny converts generic map-shaped records.
func SerializeAny(s *schema.Schema, rows []map[string]interface{}, opts Options) ([]arrow.Array, error) {
	return Serialize(s, walk.Records(rows), opts)
}

// NewRecordBatch assembles serialized columns into one arrow record batch
// for downstream writers. The arrays must be index-aligned with the schema
// and equal in length. The record retains the arrays; callers release the
// record when done.
func NewRecordBatch(s *schema.Schema, arrays []arrow.Array) (arrow.Record, error) {
	if len(arrays) != s.NumFields() {
		return nil, arcaerrors.Newf(arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
			"schema has %d fields but %d arrays given", s.NumFields(), len(arrays)).
			WithDetail(arcaerrors.DetailExpected, s.NumFields()).
			WithDetail(arcaerrors.DetailGot, len(arrays))
	}
	var rows int64
	for i, arr := range arrays {
		if i == 0 {
			rows = int64(arr.Len())
			continue
		}
		if int64(arr.Len()) != rows {
			return nil, arcaerrors.Newf(arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
				"column %q has %d rows, want %d", s.Field(i).Name, arr.Len(), rows).
				WithPath(s.Field(i).Name).
				WithDetail(arcaerrors.DetailExpected, rows).
				WithDetail(arcaerrors.DetailGot, arr.Len())
		}
	}
	as, err := s.ToArrow()
	if err != nil {
		return nil, err
	}
	return array.NewRecord(as, arrays, rows), nil
}

// withRecordIndex attaches the batch position to a conversion error.
func withRecordIndex(err error, idx int) error {
	var ae *arcaerrors.Error
	if errors.As(err, &ae) {
		return ae.WithRecordIndex(idx)
	}
	return arcaerrors.Wrap(err, arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
		"record conversion failed").WithRecordIndex(idx)
}
