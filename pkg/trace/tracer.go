// Package trace infers a columnar schema from a bounded sample of generic
// records. Each record is walked once through the value-walking protocol;
// the observed type at every field path is merged into a per-path
// accumulator using the schema type lattice, so the result is independent of
// record order.
package trace

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/arca/pkg/arcaerrors"
	"github.com/ajitpratap0/arca/pkg/schema"
	"github.com/ajitpratap0/arca/pkg/walk"
)

// Options controls schema tracing.
type Options struct {
	// MaxSamples caps the number of records inspected; 0 means all. This is
	// a sampling heuristic: types absent from the sample are not observed.
	MaxSamples int

	// StringSizeThreshold is the byte length at which an observed string
	// escalates the field to large_utf8; 0 disables the escalation.
	StringSizeThreshold int

	// Strict makes incompatible observations fail with incompatible_types
	// instead of falling back to a union.
	Strict bool

	// TypeHints declares fields whose types must not be overridden by
	// inference. Hinted top-level fields are taken verbatim; observations
	// of them are skipped.
	TypeHints *schema.Schema

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultOptions returns strict tracing over all records.
func DefaultOptions() Options {
	return Options{Strict: true}
}

// Trace infers a schema by sampling the given records. It is batch-atomic:
// on the first error no partial schema is returned.
func Trace(records []walk.Walkable, opts Options) (*schema.Schema, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hinted := make(map[string]struct{})
	if opts.TypeHints != nil {
		for _, f := range opts.TypeHints.Fields() {
			hinted[f.Name] = struct{}{}
		}
	}

	n := len(records)
	if opts.MaxSamples > 0 && n > opts.MaxSamples {
		n = opts.MaxSamples
	}

	mergeOpts := schema.MergeOptions{Strict: opts.Strict}
	collector := walk.NewCollector()

	// One mutable accumulator for the whole record shape: the root is a
	// struct field whose children are the per-path accumulators. Its
	// lifetime is scoped to this call.
	var acc schema.Field
	seeded := false

	for i := 0; i < n; i++ {
		collector.Reset()
		if err := records[i].Walk(collector); err != nil {
			return nil, arcaerrors.Wrap(err, arcaerrors.ErrorTypeSchema, arcaerrors.CodeIncompatibleTypes,
				"failed to walk record").WithRecordIndex(i)
		}
		value, err := collector.Result()
		if err != nil {
			return nil, arcaerrors.Wrap(err, arcaerrors.ErrorTypeSchema, arcaerrors.CodeIncompatibleTypes,
				"record walk incomplete").WithRecordIndex(i)
		}
		if value.Kind != walk.KindStruct {
			return nil, arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeIncompatibleTypes,
				"record must walk as a struct, got %s", value.Kind).
				WithPath("").WithRecordIndex(i)
		}

		observed, err := observeStruct("", value, hinted, opts)
		if err != nil {
			return nil, arcaerrors.Wrap(err, arcaerrors.ErrorTypeSchema, arcaerrors.CodeIncompatibleTypes,
				"failed to type record").WithRecordIndex(i)
		}

		if !seeded {
			acc = observed
			seeded = true
			continue
		}
		acc, err = schema.Merge(acc, observed, mergeOpts)
		if err != nil {
			return nil, arcaerrors.Wrap(err, arcaerrors.ErrorTypeSchema, arcaerrors.CodeIncompatibleTypes,
				"failed to merge record types").WithRecordIndex(i)
		}
	}

	fields := make([]schema.Field, 0, len(acc.Children)+len(hinted))
	if opts.TypeHints != nil {
		fields = append(fields, opts.TypeHints.Fields()...)
	}
	if seeded {
		for _, f := range acc.Children {
			if err := checkObserved(f.Name, f); err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
	}

	if len(fields) == 0 {
		return nil, arcaerrors.New(arcaerrors.ErrorTypeSchema, arcaerrors.CodeEmptySchema,
			"no fields observed and no type hints given").WithPath("")
	}

	traced, err := schema.New(fields)
	if err != nil {
		return nil, err
	}

	logger.Debug("schema traced",
		zap.Int("samples", n),
		zap.Int("fields", traced.NumFields()))
	return traced, nil
}

// TraceAny infers a schema from generic map-shaped records.
func TraceAny(rows []map[string]interface{}, opts Options) (*schema.Schema, error) {
	return Trace(walk.Records(rows), opts)
}

// observeStruct types a struct value; hinted names apply at the root only.
func observeStruct(path string, v walk.Value, hinted map[string]struct{}, opts Options) (schema.Field, error) {
	children := make([]schema.Field, 0, len(v.Fields))
	for _, member := range v.Fields {
		if path == "" {
			if _, skip := hinted[member.Name]; skip {
				continue
			}
		}
		child, err := observe(member.Name, schema.ChildPath(path, member.Name), member.Value, opts)
		if err != nil {
			return schema.Field{}, err
		}
		children = append(children, child)
	}
	return schema.Field{Type: schema.PrimitiveType(schema.TypeStruct), Children: children}, nil
}

// observe types one observed value. Null observations are nullable; the
// element accumulator of an empty sequence stays a non-nullable null so it
// does not force nullability onto later observations.
func observe(name, path string, v walk.Value, opts Options) (schema.Field, error) {
	switch v.Kind {
	case walk.KindNull:
		return schema.Field{Name: name, Type: schema.PrimitiveType(schema.TypeNull), Nullable: true}, nil
	case walk.KindBool:
		return schema.NewField(name, schema.TypeBool, false), nil
	case walk.KindInt:
		return schema.NewField(name, schema.IntegerTypeOf(int(v.Width), true), false), nil
	case walk.KindUint:
		return schema.NewField(name, schema.IntegerTypeOf(int(v.Width), false), false), nil
	case walk.KindFloat:
		if v.Width == 32 {
			return schema.NewField(name, schema.TypeFloat32, false), nil
		}
		return schema.NewField(name, schema.TypeFloat64, false), nil
	case walk.KindString:
		if opts.StringSizeThreshold > 0 && len(v.Str) >= opts.StringSizeThreshold {
			return schema.NewField(name, schema.TypeLargeUtf8, false), nil
		}
		return schema.NewField(name, schema.TypeUtf8, false), nil
	case walk.KindSeq:
		elem := schema.Field{Name: "item", Type: schema.PrimitiveType(schema.TypeNull)}
		mergeOpts := schema.MergeOptions{Strict: opts.Strict}
		for _, item := range v.Seq {
			observed, err := observe("item", schema.ElementPath(path), item, opts)
			if err != nil {
				return schema.Field{}, err
			}
			elem, err = schema.Merge(elem, observed, mergeOpts)
			if err != nil {
				return schema.Field{}, err
			}
		}
		return schema.ListOf(name, elem, false), nil
	case walk.KindStruct:
		f, err := observeStruct(path, v, nil, opts)
		if err != nil {
			return schema.Field{}, err
		}
		f.Name = name
		return f, nil
	case walk.KindMap:
		key := schema.Field{Name: "key", Type: schema.PrimitiveType(schema.TypeNull)}
		value := schema.Field{Name: "value", Type: schema.PrimitiveType(schema.TypeNull)}
		mergeOpts := schema.MergeOptions{Strict: opts.Strict}
		for _, entry := range v.Entries {
			observedKey, err := observe("key", schema.ChildPath(path, "key"), entry.Key, opts)
			if err != nil {
				return schema.Field{}, err
			}
			if key, err = schema.Merge(key, observedKey, mergeOpts); err != nil {
				return schema.Field{}, err
			}
			observedValue, err := observe("value", schema.ChildPath(path, "value"), entry.Value, opts)
			if err != nil {
				return schema.Field{}, err
			}
			if value, err = schema.Merge(value, observedValue, mergeOpts); err != nil {
				return schema.Field{}, err
			}
		}
		return schema.MapOf(name, key, value, false), nil
	case walk.KindVariant:
		inner := walk.Null()
		if v.Inner != nil {
			inner = *v.Inner
		}
		variant, err := observe(v.Tag, schema.ChildPath(path, v.Tag), inner, opts)
		if err != nil {
			return schema.Field{}, err
		}
		return schema.UnionOf(name, false, variant), nil
	}
	return schema.Field{}, arcaerrors.Newf(arcaerrors.ErrorTypeSchema, arcaerrors.CodeIncompatibleTypes,
		"unknown value kind %s", v.Kind).WithPath(path)
}

// checkObserved rejects paths that were never observed with any type. A
// nullable null field was genuinely observed as always-null and becomes a
// null column; a non-nullable null is the untouched accumulator seed.
func checkObserved(path string, f schema.Field) error {
	if f.Type.ID == schema.TypeNull && !f.Nullable {
		return arcaerrors.New(arcaerrors.ErrorTypeSchema, arcaerrors.CodeEmptySchema,
			"no type observed for field").WithPath(path)
	}
	for _, child := range f.Children {
		childPath := schema.ChildPath(path, child.Name)
		if f.Type.ID == schema.TypeList || f.Type.ID == schema.TypeLargeList {
			childPath = schema.ElementPath(path)
		}
		if err := checkObserved(childPath, child); err != nil {
			return err
		}
	}
	return nil
}
