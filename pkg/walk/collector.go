package walk

import (
	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

// Collector is a Sink that assembles the transient Value tree of one record.
// It is the bridge between the walking protocol and the tracer/serializer,
// which operate on Value trees. A Collector may be reused across records
// via Reset.
type Collector struct {
	frames  []frame
	root    Value
	hasRoot bool
}

type frameKind uint8

const (
	frameStruct frameKind = iota
	frameSeq
	frameMap
	frameVariant
)

type frame struct {
	kind frameKind

	// struct state
	fields      []StructField
	pendingName string
	namePending bool

	// seq state
	items []Value

	// map state
	entries    []MapEntry
	pendingKey *Value

	// variant state
	tag      string
	tagIndex int
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Reset clears the collector for the next record.
func (c *Collector) Reset() {
	c.frames = c.frames[:0]
	c.root = Value{}
	c.hasRoot = false
}

// Result returns the assembled value tree. It fails if the walk did not
// produce exactly one complete value.
func (c *Collector) Result() (Value, error) {
	if len(c.frames) != 0 {
		return Value{}, protocolError("walk ended with %d unterminated scopes", len(c.frames))
	}
	if !c.hasRoot {
		return Value{}, protocolError("walk produced no value")
	}
	return c.root, nil
}

// BeginStruct implements Sink.
func (c *Collector) BeginStruct() error {
	c.frames = append(c.frames, frame{kind: frameStruct})
	return nil
}

// VisitField implements Sink.
func (c *Collector) VisitField(name string) error {
	top := c.top()
	if top == nil || top.kind != frameStruct {
		return protocolError("VisitField(%q) outside a struct scope", name)
	}
	if top.namePending {
		return protocolError("VisitField(%q) before a value for field %q", name, top.pendingName)
	}
	top.pendingName = name
	top.namePending = true
	return nil
}

// EndStruct implements Sink.
func (c *Collector) EndStruct() error {
	top := c.top()
	if top == nil || top.kind != frameStruct {
		return protocolError("EndStruct outside a struct scope")
	}
	if top.namePending {
		return protocolError("EndStruct with field %q missing its value", top.pendingName)
	}
	fields := top.fields
	c.pop()
	return c.push(Struct(fields))
}

// BeginSeq implements Sink.
func (c *Collector) BeginSeq(hintLen int) error {
	f := frame{kind: frameSeq}
	if hintLen > 0 {
		f.items = make([]Value, 0, hintLen)
	}
	c.frames = append(c.frames, f)
	return nil
}

// VisitElement implements Sink.
func (c *Collector) VisitElement() error {
	top := c.top()
	if top == nil || top.kind != frameSeq {
		return protocolError("VisitElement outside a sequence scope")
	}
	return nil
}

// EndSeq implements Sink.
func (c *Collector) EndSeq() error {
	top := c.top()
	if top == nil || top.kind != frameSeq {
		return protocolError("EndSeq outside a sequence scope")
	}
	items := top.items
	c.pop()
	return c.push(Seq(items))
}

// BeginMap implements Sink.
func (c *Collector) BeginMap() error {
	c.frames = append(c.frames, frame{kind: frameMap})
	return nil
}

// VisitEntry implements Sink.
func (c *Collector) VisitEntry() error {
	top := c.top()
	if top == nil || top.kind != frameMap {
		return protocolError("VisitEntry outside a map scope")
	}
	if top.pendingKey != nil {
		return protocolError("VisitEntry before previous entry's value")
	}
	return nil
}

// EndMap implements Sink.
func (c *Collector) EndMap() error {
	top := c.top()
	if top == nil || top.kind != frameMap {
		return protocolError("EndMap outside a map scope")
	}
	if top.pendingKey != nil {
		return protocolError("EndMap with a dangling entry key")
	}
	entries := top.entries
	c.pop()
	return c.push(Map(entries))
}

// VisitPrimitive implements Sink.
func (c *Collector) VisitPrimitive(v Value) error {
	return c.push(v)
}

// VisitNull implements Sink.
func (c *Collector) VisitNull() error {
	return c.push(Null())
}

// VisitSome implements Sink. The wrapped value follows on its own.
func (c *Collector) VisitSome() error {
	return nil
}

// VisitNone implements Sink.
func (c *Collector) VisitNone() error {
	return c.push(Null())
}

// VisitVariant implements Sink. The variant payload follows as the next
// value; unit variants must follow with VisitNull.
func (c *Collector) VisitVariant(tag string, index int) error {
	c.frames = append(c.frames, frame{kind: frameVariant, tag: tag, tagIndex: index})
	return nil
}

func (c *Collector) top() *frame {
	if len(c.frames) == 0 {
		return nil
	}
	return &c.frames[len(c.frames)-1]
}

func (c *Collector) pop() {
	c.frames = c.frames[:len(c.frames)-1]
}

// push routes a completed value into the enclosing scope.
func (c *Collector) push(v Value) error {
	for {
		top := c.top()
		if top == nil {
			if c.hasRoot {
				return protocolError("walk produced more than one root value")
			}
			c.root = v
			c.hasRoot = true
			return nil
		}

		switch top.kind {
		case frameStruct:
			if !top.namePending {
				return protocolError("struct value without a preceding VisitField")
			}
			top.fields = append(top.fields, StructField{Name: top.pendingName, Value: v})
			top.namePending = false
			return nil
		case frameSeq:
			top.items = append(top.items, v)
			return nil
		case frameMap:
			if top.pendingKey == nil {
				key := v
				top.pendingKey = &key
				return nil
			}
			top.entries = append(top.entries, MapEntry{Key: *top.pendingKey, Value: v})
			top.pendingKey = nil
			return nil
		case frameVariant:
			tag, idx := top.tag, top.tagIndex
			c.pop()
			v = Variant(tag, idx, v)
			// loop: deliver the wrapped variant to the next enclosing scope
		default:
			return protocolError("corrupt collector frame")
		}
	}
}

func protocolError(format string, args ...interface{}) error {
	return arcaerrors.Newf(arcaerrors.ErrorTypeInternal, arcaerrors.CodeInvalidConfig,
		"walk protocol violation: "+format, args...)
}
