package builder

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/schema"
	"github.com/ajitpratap0/arca/pkg/walk"
)

// Options controls batch building.
type Options struct {
	// IgnoreUnknownFields drops record fields the schema does not declare
	// instead of failing with unknown_field.
	IgnoreUnknownFields bool
}

// Tree is the builder forest for one conversion batch: one root Node per
// top-level schema field. A Tree is owned exclusively by its batch and is
// not safe for concurrent use.
type Tree struct {
	schema *schema.Schema
	arrow  *arrow.Schema
	nodes  []*Node
	byName map[string]int
	opts   Options
}

// NewTree instantiates a fresh builder tree for the schema. The allocator
// defaults to the arrow Go allocator when nil.
func NewTree(mem memory.Allocator, s *schema.Schema, opts Options) (*Tree, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if s == nil || s.NumFields() == 0 {
		return nil, arcaerrors.New(arcaerrors.ErrorTypeSchema, arcaerrors.CodeEmptySchema,
			"cannot build against an empty schema")
	}
	as, err := s.ToArrow()
	if err != nil {
		return nil, err
	}

	t := &Tree{
		schema: s,
		arrow:  as,
		nodes:  make([]*Node, s.NumFields()),
		byName: make(map[string]int, s.NumFields()),
		opts:   opts,
	}
	for i, f := range s.Fields() {
		b := array.NewBuilder(mem, as.Field(i).Type)
		node, err := newNode(f.Name, f, b, opts.IgnoreUnknownFields)
		if err != nil {
			b.Release()
			t.Release()
			return nil, err
		}
		t.nodes[i] = node
		t.byName[f.Name] = i
	}
	return t, nil
}

// Schema returns the schema the tree builds against.
func (t *Tree) Schema() *schema.Schema {
	return t.schema
}

// ArrowSchema returns the arrow rendering of the schema, shared with the
// finished arrays.
func (t *Tree) ArrowSchema() *arrow.Schema {
	return t.arrow
}

// Node returns the root node for the i-th top-level field.
func (t *Tree) Node(i int) *Node {
	return t.nodes[i]
}

// Len returns the number of records appended so far.
func (t *Tree) Len() int {
	if len(t.nodes) == 0 {
		return 0
	}
	return t.nodes[0].Len()
}

// AppendRecord appends one record, routing each top-level member to its
// column. Declared nullable fields absent from the record become null rows;
// absent non-nullable fields and undeclared record fields are errors, and
// the caller abandons the batch.
func (t *Tree) AppendRecord(v walk.Value) error {
	if v.Kind != walk.KindStruct {
		return arcaerrors.Newf(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
			"record must walk as a struct, got %s", v.Kind).WithPath("")
	}
	return appendStructMembers("", v.Fields, t.nodes, t.byName, t.opts.IgnoreUnknownFields)
}

// Finish converts every column into an immutable array, consuming the tree.
// The arrays are index-aligned with the schema's top-level fields.
func (t *Tree) Finish() ([]arrow.Array, error) {
	arrays := make([]arrow.Array, len(t.nodes))
	for i, n := range t.nodes {
		arr, err := n.Finish()
		if err != nil {
			for _, done := range arrays[:i] {
				done.Release()
			}
			return nil, err
		}
		arrays[i] = arr
	}
	return arrays, nil
}

// Release abandons the batch, dropping all staged columns. Safe to call
// after Finish or more than once.
func (t *Tree) Release() {
	for _, n := range t.nodes {
		if n != nil {
			n.release()
		}
	}
}
