package walk

// Sink receives the shape and values of one record as it is walked. It is
// the capability interface a record adapter drives; the tracer and the
// serializer both consume records exclusively through it.
//
// The protocol is strictly nested: BeginStruct/EndStruct, BeginSeq/EndSeq
// and BeginMap/EndMap bracket their contents; VisitField precedes each
// struct member, VisitElement precedes each sequence element, VisitEntry
// precedes each map entry (which is walked as key then value). VisitSome
// marks a present optional whose value follows; VisitNone marks an absent
// optional. VisitVariant precedes the payload of an enum value.
//
// Implementations of Walkable must be deterministic and enumerate struct
// fields in a stable, consistent order across records of the same logical
// type.
type Sink interface {
	BeginStruct() error
	VisitField(name string) error
	EndStruct() error

	BeginSeq(hintLen int) error
	VisitElement() error
	EndSeq() error

	BeginMap() error
	VisitEntry() error
	EndMap() error

	VisitPrimitive(v Value) error
	VisitNull() error
	VisitSome() error
	VisitNone() error
	VisitVariant(tag string, index int) error
}

// Walkable is implemented by record adapters: Walk drives the sink through
// the record's shape and values exactly once.
type Walkable interface {
	Walk(s Sink) error
}

// Func adapts a plain function into a Walkable.
type Func func(s Sink) error

// Walk implements Walkable.
func (f Func) Walk(s Sink) error {
	return f(s)
}
