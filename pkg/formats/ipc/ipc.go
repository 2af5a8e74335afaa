// Package ipc reads and writes Arrow IPC files as a collaborator on top of
// the conversion core: generic records go in through the serializer, record
// batches come back out through the deserializer. The file format is the
// standard Arrow file layout, so anything written here is readable by other
// Arrow tooling and vice versa.
package ipc

import (
	"bytes"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	arrowipc "github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/convert"
	"github.com/ajitpratap0/arca/pkg/metrics"
	"github.com/ajitpratap0/arca/pkg/schema"
	"github.com/ajitpratap0/arca/pkg/walk"
)

// WriterConfig controls IPC file writing.
type WriterConfig struct {
	// Schema is required; every written record must be representable under it.
	Schema *schema.Schema

	// BatchSize is the number of records staged per record batch. Defaults
	// to 10000.
	BatchSize int

	// IgnoreUnknownFields drops record fields the schema does not declare.
	IgnoreUnknownFields bool

	// Allocator defaults to the arrow Go allocator.
	Allocator memory.Allocator

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Writer writes generic records into an Arrow IPC file, serializing them in
// batches. Writer is safe for concurrent use.
type Writer struct {
	config      WriterConfig
	arrowSchema *arrow.Schema
	fileWriter  *arrowipc.FileWriter
	logger      *zap.Logger

	mu          sync.Mutex
	pending     []walk.Walkable
	rowsWritten int64
}

// NewWriter creates an IPC file writer over w.
func NewWriter(w io.Writer, config WriterConfig) (*Writer, error) {
	if config.Schema == nil {
		return nil, arcaerrors.New(arcaerrors.ErrorTypeConfig, arcaerrors.CodeInvalidConfig,
			"schema is required for IPC writing")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10000
	}
	if config.Allocator == nil {
		config.Allocator = memory.DefaultAllocator
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	as, err := config.Schema.ToArrow()
	if err != nil {
		return nil, err
	}
	fw, err := arrowipc.NewFileWriter(w, arrowipc.WithSchema(as), arrowipc.WithAllocator(config.Allocator))
	if err != nil {
		return nil, arcaerrors.Wrap(err, arcaerrors.ErrorTypeConfig, arcaerrors.CodeInvalidConfig,
			"failed to create IPC file writer")
	}

	return &Writer{
		config:      config,
		arrowSchema: as,
		fileWriter:  fw,
		logger:      config.Logger,
		pending:     make([]walk.Walkable, 0, config.BatchSize),
	}, nil
}

// WriteRecord stages one record, flushing a record batch when the stage is
// full.
func (w *Writer) WriteRecord(rec walk.Walkable) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, rec)
	if len(w.pending) >= w.config.BatchSize {
		return w.flushLocked()
	}
	return nil
}

// WriteAny stages one generic map-shaped record.
func (w *Writer) WriteAny(row map[string]interface{}) error {
	return w.WriteRecord(walk.AnyRecord(row))
}

// Flush serializes and writes all staged records as one record batch.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close flushes staged records and finalizes the file footer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.fileWriter.Close(); err != nil {
		return arcaerrors.Wrap(err, arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
			"failed to close IPC file writer")
	}
	return nil
}

// RowsWritten returns the number of records written so far.
func (w *Writer) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowsWritten
}

func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}

	timer := metrics.NewTimer()
	rows := len(w.pending)

	arrays, err := convert.Serialize(w.config.Schema, w.pending, convert.Options{
		IgnoreUnknownFields: w.config.IgnoreUnknownFields,
		Allocator:           w.config.Allocator,
		Logger:              w.logger,
	})
	metrics.ObserveBatch("serialize", rows, timer.Stop(), err)
	if err != nil {
		return err
	}

	rec, err := convert.NewRecordBatch(w.config.Schema, arrays)
	if err != nil {
		for _, arr := range arrays {
			arr.Release()
		}
		return err
	}
	defer rec.Release()
	for _, arr := range arrays {
		arr.Release()
	}

	if err := w.fileWriter.Write(rec); err != nil {
		return arcaerrors.Wrap(err, arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
			"failed to write record batch")
	}

	w.rowsWritten += int64(rows)
	w.pending = w.pending[:0]
	w.logger.Debug("record batch written",
		zap.Int("rows", rows),
		zap.Int64("total_rows", w.rowsWritten))
	return nil
}

// Reader reads an Arrow IPC file back into generic records, one batch at a
// time. Reader is safe for concurrent use.
type Reader struct {
	fileReader *arrowipc.FileReader
	schema     *schema.Schema

	mu         sync.Mutex
	batch      *convert.Reader
	current    arrow.Record
	batchIndex int
}

// NewReader opens an IPC file. The stream is read fully up front since the
// Arrow file layout requires a seekable footer.
func NewReader(r io.Reader) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, arcaerrors.Wrap(err, arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
			"failed to read IPC data")
	}
	fr, err := arrowipc.NewFileReader(bytes.NewReader(data), arrowipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, arcaerrors.Wrap(err, arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
			"failed to open IPC file")
	}
	s, err := schema.FromArrow(fr.Schema())
	if err != nil {
		fr.Close()
		return nil, err
	}
	return &Reader{fileReader: fr, schema: s, batchIndex: -1}, nil
}

// Schema returns the schema recovered from the file.
func (r *Reader) Schema() *schema.Schema {
	return r.schema
}

// Next returns the next record, or nil at end of file.
func (r *Reader) Next() (map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.batch == nil || !r.batch.HasNext() {
		if err := r.loadNextBatch(); err != nil {
			return nil, err
		}
		if r.batch == nil {
			return nil, nil // EOF
		}
	}
	return r.batch.Next()
}

// HasNext reports whether another record remains.
func (r *Reader) HasNext() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.batch == nil || !r.batch.HasNext() {
		if err := r.loadNextBatch(); err != nil {
			return false
		}
		if r.batch == nil {
			return false
		}
	}
	return true
}

// ReadAll drains the remaining records.
func (r *Reader) ReadAll() ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0)
	for {
		rec, err := r.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return out, nil
		}
		out = append(out, rec)
	}
}

// Close releases the current batch and the underlying file reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.Release()
		r.current = nil
	}
	r.batch = nil
	return r.fileReader.Close()
}

func (r *Reader) loadNextBatch() error {
	if r.current != nil {
		r.current.Release()
		r.current = nil
		r.batch = nil
	}

	r.batchIndex++
	if r.batchIndex >= r.fileReader.NumRecords() {
		return nil // EOF
	}

	rec, err := r.fileReader.Record(r.batchIndex)
	if err != nil {
		return arcaerrors.Wrap(err, arcaerrors.ErrorTypeStructural, arcaerrors.CodeLengthMismatch,
			"failed to read record batch")
	}
	rec.Retain()
	r.current = rec

	timer := metrics.NewTimer()
	batch, err := convert.NewReader(r.schema, rec.Columns())
	metrics.ObserveBatch("deserialize", int(rec.NumRows()), timer.Stop(), err)
	if err != nil {
		return err
	}
	r.batch = batch
	return nil
}
