package walk

import (
	"bytes"

	jsonx "github.com/ajitpratap0/arca/pkg/json"
	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

// JSONRecord adapts one JSON document (an object) to the walking protocol.
// Numbers decode with full precision: integral literals walk as int64,
// fractional or exponential literals as float64. Object keys are visited in
// sorted order, matching AnyRecord.
type JSONRecord []byte

// Walk implements Walkable.
func (r JSONRecord) Walk(s Sink) error {
	dec := jsonx.NewDecoder(bytes.NewReader(r))
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return arcaerrors.Wrap(err, arcaerrors.ErrorTypeConversion, arcaerrors.CodeInvalidConfig,
			"failed to decode JSON record")
	}
	return walkMapAsStruct(doc, s)
}

// JSONRecords splits newline-delimited JSON into per-document Walkables.
// Blank lines are skipped.
func JSONRecords(data []byte) []Walkable {
	lines := bytes.Split(data, []byte("\n"))
	out := make([]Walkable, 0, len(lines))
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		out = append(out, JSONRecord(line))
	}
	return out
}
