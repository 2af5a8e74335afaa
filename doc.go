// Package arca converts between generic in-memory records and Apache Arrow
// columnar arrays: it traces schemas by sampling records, serializes record
// batches into immutable Arrow arrays, and deserializes arrays back into
// generic records.
//
// # Architecture
//
// Arca is organized around a small set of contracts:
//
// 1. Value-Walking Protocol (pkg/walk): record types expose their shape and
// values through the walk.Sink capability interface; the core never depends
// on concrete record representations. Adapters for map-shaped records and
// JSON documents ship in the box.
//
// 2. Schema model and type lattice (pkg/schema): named, typed, nullable
// Fields with a commutative, associative merge, so schemas inferred from
// record samples do not depend on record order.
//
// 3. Builder tree (pkg/builder): per-batch mutable staging over arrow-go
// array builders. Compound appends always advance every child builder by
// exactly one logical row, keeping sibling columns length-aligned by
// construction.
//
// 4. Conversion (pkg/convert): batch-atomic serialization of records into
// arrays and a lazy single-pass reader reconstructing records from arrays.
//
// # Quick Start
//
// Trace a schema and serialize records:
//
//	rows := []map[string]interface{}{
//		{"name": "a", "count": 1},
//		{"name": "b", "count": nil},
//	}
//	s, err := trace.TraceAny(rows, trace.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	arrays, err := convert.SerializeAny(s, rows, convert.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer func() {
//		for _, arr := range arrays {
//			arr.Release()
//		}
//	}()
//
// Read the arrays back:
//
//	records, err := convert.Deserialize(s, arrays)
//
// Finished arrays are plain arrow.Array values: immutable, reference
// counted, and shareable with any Arrow-aware consumer. The pkg/formats/ipc
// package writes and reads them as standard Arrow IPC files, and cmd/arca
// exposes tracing and conversion as a command line tool.
package arca
