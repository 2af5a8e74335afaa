package walk

import (
	"reflect"
	"sort"
	"strconv"

	jsonx "github.com/ajitpratap0/arca/pkg/json"
	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

// AnyRecord adapts a generic map-shaped record (the shape JSON decoding and
// most row sources produce) to the walking protocol. Map keys are visited in
// sorted order so field enumeration is deterministic across records, as the
// protocol requires.
type AnyRecord map[string]interface{}

// Walk implements Walkable.
func (r AnyRecord) Walk(s Sink) error {
	return walkMapAsStruct(map[string]interface{}(r), s)
}

// Records wraps a batch of generic maps into Walkables.
func Records(rows []map[string]interface{}) []Walkable {
	out := make([]Walkable, len(rows))
	for i, row := range rows {
		out[i] = AnyRecord(row)
	}
	return out
}

// WalkAny drives the sink through an arbitrary in-memory value: primitives,
// strings, slices and string-keyed maps. Maps walk as structs with sorted
// keys. Unsupported types fail rather than guessing.
func WalkAny(v interface{}, s Sink) error {
	switch val := v.(type) {
	case nil:
		return s.VisitNull()
	case bool:
		return s.VisitPrimitive(Bool(val))
	case int:
		return s.VisitPrimitive(Int64(int64(val)))
	case int8:
		return s.VisitPrimitive(Int(int64(val), 8))
	case int16:
		return s.VisitPrimitive(Int(int64(val), 16))
	case int32:
		return s.VisitPrimitive(Int(int64(val), 32))
	case int64:
		return s.VisitPrimitive(Int64(val))
	case uint:
		return s.VisitPrimitive(Uint64(uint64(val)))
	case uint8:
		return s.VisitPrimitive(Uint(uint64(val), 8))
	case uint16:
		return s.VisitPrimitive(Uint(uint64(val), 16))
	case uint32:
		return s.VisitPrimitive(Uint(uint64(val), 32))
	case uint64:
		return s.VisitPrimitive(Uint64(val))
	case float32:
		return s.VisitPrimitive(Float(float64(val), 32))
	case float64:
		return s.VisitPrimitive(Float64(val))
	case string:
		return s.VisitPrimitive(String(val))
	case jsonx.Number:
		return walkNumber(val, s)
	case []interface{}:
		if err := s.BeginSeq(len(val)); err != nil {
			return err
		}
		for _, item := range val {
			if err := s.VisitElement(); err != nil {
				return err
			}
			if err := WalkAny(item, s); err != nil {
				return err
			}
		}
		return s.EndSeq()
	case map[string]interface{}:
		return walkMapAsStruct(val, s)
	case Walkable:
		return val.Walk(s)
	}
	return walkReflected(v, s)
}

func walkMapAsStruct(m map[string]interface{}, s Sink) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := s.BeginStruct(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.VisitField(k); err != nil {
			return err
		}
		if err := WalkAny(m[k], s); err != nil {
			return err
		}
	}
	return s.EndStruct()
}

// walkNumber preserves integer precision: integral literals become int64,
// everything else float64.
func walkNumber(n jsonx.Number, s Sink) error {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return s.VisitPrimitive(Int64(i))
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return arcaerrors.Wrap(err, arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
			"unparseable JSON number "+n.String())
	}
	return s.VisitPrimitive(Float64(f))
}

// walkReflected handles typed slices and string-keyed maps that the
// type switch cannot cover (e.g. []string, map[string]int64).
func walkReflected(v interface{}, s Sink) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return s.VisitNull()
		}
		return WalkAny(rv.Elem().Interface(), s)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return s.VisitNull()
		}
		if err := s.BeginSeq(rv.Len()); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := s.VisitElement(); err != nil {
				return err
			}
			if err := WalkAny(rv.Index(i).Interface(), s); err != nil {
				return err
			}
		}
		return s.EndSeq()
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return arcaerrors.Newf(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
				"map keys of type %s are not walkable as struct fields", rv.Type().Key())
		}
		m := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return walkMapAsStruct(m, s)
	}
	return arcaerrors.Newf(arcaerrors.ErrorTypeConversion, arcaerrors.CodeTypeMismatch,
		"value of type %T is not walkable", v)
}
