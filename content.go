package jdeserialize

import (
	"fmt"
	"strings"
)

// Content is one item written to the stream: a string, a class description,
// a Class object, an enum constant, an array, an ordinary object instance,
// a block of opaque data, or the state captured around an embedded
// exception. It is a closed sum; consumers dispatch with a type switch.
type Content interface {
	// Handle returns the wire handle assigned to this item, or -1 for
	// items that never receive one (block data).
	Handle() int32
	// ExceptionObject reports whether this item was decoded as a thrown
	// exception embedded in the stream.
	ExceptionObject() bool

	markExceptionObject()
	validate() error
}

type contentBase struct {
	handle          int32
	exceptionObject bool
}

func (b *contentBase) Handle() int32         { return b.handle }
func (b *contentBase) ExceptionObject() bool { return b.exceptionObject }
func (b *contentBase) markExceptionObject()  { b.exceptionObject = true }
func (b *contentBase) validate() error       { return nil }

// StringObject is a serialized string. Strings carry handles like any other
// object; class descriptions refer to them for field type descriptors, and
// enums for their constant names.
type StringObject struct {
	contentBase
	Value string
	// ByteLength is the length of the modified UTF-8 source bytes, which
	// can differ from len(Value).
	ByteLength int
}

func newStringObject(handle int32, data []byte) (*StringObject, error) {
	value, err := decodeModifiedUTF8(data)
	if err != nil {
		return nil, err
	}
	return &StringObject{
		contentBase: contentBase{handle: handle},
		Value:       value,
		ByteLength:  len(data),
	}, nil
}

func (s *StringObject) String() string {
	return "[String " + hex(int64(s.handle)) + ": \"" + unicodeEscape(s.Value) + "\"]"
}

// ClassObject represents an instance of type Class written to the stream.
type ClassObject struct {
	contentBase
	ClassDesc *ClassDesc
}

func (c *ClassObject) String() string {
	return "[class " + hex(int64(c.handle)) + ": " + c.ClassDesc.String() + "]"
}

// EnumObject is an enum constant: nothing but the class description and the
// string holding the constant's name is ever serialized.
type EnumObject struct {
	contentBase
	ClassDesc *ClassDesc
	Value     *StringObject
}

func (e *EnumObject) String() string {
	return "[enum " + hex(int64(e.handle)) + ": " + e.Value.Value + "]"
}

func (e *EnumObject) validate() error {
	if e.Value == nil {
		return validityErrorf("enum %s has no constant value", hex(int64(e.handle)))
	}
	return nil
}

// ArrayObject is a serialized array. The element kind is derived from the
// second character of the array class name ("[I" holds ints, "[Lfoo/Bar;"
// holds object references). Primitive elements are stored boxed; reference
// elements are Content values or nil.
type ArrayObject struct {
	contentBase
	ClassDesc *ClassDesc
	ElemType  FieldType
	Data      []interface{}
}

func (a *ArrayObject) String() string {
	var sb strings.Builder
	sb.WriteString("[Array ")
	sb.WriteString(hex(int64(a.handle)))
	sb.WriteString(" classdesc ")
	sb.WriteString(a.ClassDesc.String())
	sb.WriteString(": [")
	for i, v := range a.Data {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprint(&sb, v)
	}
	sb.WriteString("]]")
	return sb.String()
}

// Instance is an ordinary object: its most-derived class description plus,
// for every SERIALIZABLE class in the hierarchy, the values of that class's
// declared fields, and any per-class object annotations written by custom
// writeObject implementations.
type Instance struct {
	contentBase
	ClassDesc   *ClassDesc
	FieldData   map[*ClassDesc]map[*Field]interface{}
	Annotations map[*ClassDesc][]Content
}

func newInstance(handle int32, cd *ClassDesc) *Instance {
	return &Instance{
		contentBase: contentBase{handle: handle},
		ClassDesc:   cd,
		FieldData:   make(map[*ClassDesc]map[*Field]interface{}),
		Annotations: make(map[*ClassDesc][]Content),
	}
}

func (inst *Instance) String() string {
	return inst.ClassDesc.Name + " _h" + hex(int64(inst.handle)) +
		" = r_" + hex(int64(inst.ClassDesc.handle)) + ";  "
}

// BlockData is an opaque buffer written outside of any object, typically by
// raw write calls on the object output stream. Block data has no handle.
type BlockData struct {
	contentBase
	Buf []byte
}

func newBlockData(buf []byte) *BlockData {
	return &BlockData{contentBase: contentBase{handle: -1}, Buf: buf}
}

func (b *BlockData) String() string {
	return fmt.Sprintf("[blockdata: %d bytes]", len(b.Buf))
}

// ExceptionState captures a serialization that failed mid-write: the
// exception object the writer serialized in its place, and the raw bytes of
// the enclosing partial write. It adopts the handle of the exception it
// wraps.
type ExceptionState struct {
	contentBase
	Exception Content
	// Data holds the stream bytes consumed between the top-level read
	// point and the recognition of TC_EXCEPTION. It generally starts with
	// the type code of the item being written when the exception was
	// thrown, and is not likely to be cleanly parseable; it may include
	// more data than the partial write itself.
	Data []byte
}

func newExceptionState(exception Content, data []byte) *ExceptionState {
	return &ExceptionState{
		contentBase: contentBase{handle: exception.Handle()},
		Exception:   exception,
		Data:        data,
	}
}

func (e *ExceptionState) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[ExceptionState %v  length %d", e.Exception, len(e.Data))
	for i, b := range e.Data {
		if i%16 == 0 {
			fmt.Fprintf(&sb, "\n%7x: ", i)
		}
		sb.WriteString(" " + hexNoPrefix(int64(b), 2))
	}
	if len(e.Data) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("]")
	return sb.String()
}
