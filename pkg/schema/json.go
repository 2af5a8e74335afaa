package schema

import (
	jsonx "github.com/ajitpratap0/arca/pkg/json"
	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

// MarshalJSON renders a TypeID as its canonical name.
func (id TypeID) MarshalJSON() ([]byte, error) {
	return jsonx.Marshal(id.String())
}

// UnmarshalJSON parses a TypeID from its canonical name.
func (id *TypeID) UnmarshalJSON(data []byte) error {
	var name string
	if err := jsonx.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseTypeID(name)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

type schemaJSON struct {
	Fields []Field `json:"fields"`
}

// MarshalJSON renders the schema as {"fields": [...]}.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return jsonx.Marshal(schemaJSON{Fields: s.fields})
}

// UnmarshalJSON parses and validates a schema from its JSON form.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw schemaJSON
	if err := jsonx.Unmarshal(data, &raw); err != nil {
		return arcaerrors.Wrap(err, arcaerrors.ErrorTypeSchema, arcaerrors.CodeInvalidConfig,
			"failed to parse schema JSON")
	}
	parsed, err := New(raw.Fields)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// ParseJSON parses and validates a schema from its JSON form.
func ParseJSON(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}
