// Package jdeserialize parses the Java Object Serialization Stream Protocol
// without loading the classes it describes. It reconstructs every content
// item written to a stream — objects, arrays, class descriptions, strings,
// enum constants, block data, and embedded serialized exceptions — as an
// in-memory model, and can reconnect inner and static member classes to
// their enclosing classes from naming conventions.
package jdeserialize

import (
	"errors"
	"io"
	"math"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("jdeserialize")

// Parser reads an entire object-output stream and builds the content model.
// A Parser owns one parse at a time; it is not safe for concurrent use.
// After Run returns, Contents and HandleMaps expose the results.
type Parser struct {
	r        *reader
	handles  *handleTable
	contents []Content

	log          *logging.Logger
	debugEnabled bool
}

func NewParser() *Parser {
	return &Parser{log: log}
}

// SetLogger replaces the parser's logger, redirecting debug trace and
// warnings for this instance.
func (p *Parser) SetLogger(l *logging.Logger) { p.log = l }

// SetDebug enables the per-step parse trace.
func (p *Parser) SetDebug(enabled bool) { p.debugEnabled = enabled }

// Contents returns the ordered list of top-level content items read from
// the stream. Entries may be nil: writing a null reference is legitimate.
func (p *Parser) Contents() []Content { return p.contents }

// HandleMaps returns one handle-to-content map per epoch, in order. A new
// epoch begins at every TC_RESET; the final epoch is included.
func (p *Parser) HandleMaps() []map[int32]Content {
	if p.handles == nil {
		return nil
	}
	return p.handles.archived
}

func (p *Parser) debugf(format string, args ...interface{}) {
	if p.debugEnabled {
		p.log.Debugf(format, args...)
	}
}

// Run reads an entire serialization stream from src, filling the parser's
// content list and handle maps. When shouldConnect is true, member classes
// are identified by name and connected to their enclosing classes after the
// parse (see connectMemberClasses).
func (p *Parser) Run(src io.Reader, shouldConnect bool) error {
	p.r = newReader(src)
	p.handles = newHandleTable()
	p.contents = nil

	var magic uint16
	var version int16
	if err := p.r.readBinary(&magic, &version); err != nil {
		return err
	}
	if magic != StreamMagic {
		return validityErrorf("file magic mismatch: expected %04x, got %04x", StreamMagic, magic)
	}
	if version != StreamVersion {
		return validityErrorf("file version mismatch: expected %d, got %d", StreamVersion, version)
	}

	for {
		p.r.mark()
		tc, err := p.r.readTypeCode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if tc == TcReset {
			p.reset()
			continue
		}
		c, err := p.readContent(tc, true)
		if err != nil {
			var ere *exceptionReadError
			if !errors.As(err, &ere) {
				return err
			}
			// The partially-built item is discarded; what remains is
			// the exception object plus the recorded raw bytes of the
			// failed write.
			c = newExceptionState(ere.exception, p.r.snapshot())
		} else if c != nil && c.ExceptionObject() {
			c = newExceptionState(c, p.r.snapshot())
		}
		p.debugf("read: %v", c)
		p.contents = append(p.contents, c)
	}

	if err := p.validateHandles(); err != nil {
		return err
	}
	if shouldConnect {
		if err := p.connectMemberClasses(); err != nil {
			return err
		}
		if err := p.validateHandles(); err != nil {
			return err
		}
	}
	p.handles.finish()
	return nil
}

func (p *Parser) validateHandles() error {
	for _, h := range sortedHandles(p.handles.current) {
		if err := p.handles.current[h].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) reset() {
	p.debugf("reset ordered")
	p.handles.reset()
}

// readContent reads the next item according to the grammar rule "content"
// (blockData true) or "object" (blockData false); the difference is whether
// TC_BLOCKDATA and TC_BLOCKDATALONG are permitted. tc is the type code
// already consumed from the stream.
func (p *Parser) readContent(tc byte, blockData bool) (Content, error) {
	switch tc {
	case TcObject:
		return p.readNewObject()
	case TcClass:
		return p.readNewClass()
	case TcArray:
		return p.readNewArray()
	case TcString, TcLongstring:
		s, err := p.readString(tc)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TcEnum:
		return p.readNewEnum()
	case TcClassdesc, TcProxyclassdesc:
		cd, err := p.classDesc(tc, true)
		if err != nil {
			return nil, err
		}
		return cd, nil
	case TcReference:
		return p.readPrevObject()
	case TcNull:
		return nil, nil
	case TcException:
		return p.readException()
	case TcBlockdata, TcBlockdatalong:
		if !blockData {
			return nil, validityErrorf("block data not allowed in this context: %s", hex(int64(tc)))
		}
		return p.readBlockData(tc)
	default:
		return nil, validityErrorf("unknown content type code in stream: %s", hex(int64(tc)))
	}
}

// readClassDesc reads a class description in a position where null and back
// references are permitted.
func (p *Parser) readClassDesc() (*ClassDesc, error) {
	tc, err := p.r.readByte()
	if err != nil {
		return nil, err
	}
	return p.classDesc(tc, false)
}

func (p *Parser) classDesc(tc byte, mustBeNew bool) (*ClassDesc, error) {
	switch tc {
	case TcClassdesc:
		return p.readNonProxyDesc()
	case TcProxyclassdesc:
		return p.readProxyDesc()
	case TcNull:
		if mustBeNew {
			return nil, validityErrorf("expected new class description, got null")
		}
		p.debugf("read null classdesc")
		return nil, nil
	case TcReference:
		if mustBeNew {
			return nil, validityErrorf("expected new class description, got a reference")
		}
		c, err := p.readPrevObject()
		if err != nil {
			return nil, err
		}
		cd, ok := c.(*ClassDesc)
		if !ok {
			return nil, validityErrorf("referenced object is not a class description")
		}
		return cd, nil
	default:
		return nil, validityErrorf("expected a valid class description starter, got %s", hex(int64(tc)))
	}
}

// readNonProxyDesc reads a TC_CLASSDESC body. The handle is bound as soon as
// the name and serial version UID are read: a class description must be
// referenceable from its own annotation and super-class chain.
func (p *Parser) readNonProxyDesc() (*ClassDesc, error) {
	name, err := p.r.readUTF()
	if err != nil {
		return nil, err
	}
	var suid int64
	if err := p.r.readBinary(&suid); err != nil {
		return nil, err
	}
	cd := &ClassDesc{
		contentBase:      contentBase{handle: p.handles.allocate()},
		DescType:         NormalClass,
		Name:             name,
		SerialVersionUID: suid,
	}
	if err := p.handles.bind(cd.handle, cd); err != nil {
		return nil, err
	}
	if err := p.r.readBinary(&cd.Flags); err != nil {
		return nil, err
	}
	var fieldCount int16
	if err := p.r.readBinary(&fieldCount); err != nil {
		return nil, err
	}
	if fieldCount < 0 {
		return nil, validityErrorf("invalid field count: %d", fieldCount)
	}
	for i := int16(0); i < fieldCount; i++ {
		tcode, err := p.r.readByte()
		if err != nil {
			return nil, err
		}
		ft, err := fieldTypeOf(tcode)
		if err != nil {
			return nil, err
		}
		fname, err := p.r.readUTF()
		if err != nil {
			return nil, err
		}
		var classname *StringObject
		if ft == FieldObject || ft == FieldArray {
			stc, err := p.r.readByte()
			if err != nil {
				return nil, err
			}
			classname, err = p.readString(stc)
			if err != nil {
				return nil, err
			}
		}
		f, err := newField(ft, fname, classname)
		if err != nil {
			return nil, err
		}
		cd.Fields = append(cd.Fields, f)
	}
	if cd.Annotations, err = p.readClassAnnotation(); err != nil {
		return nil, err
	}
	if cd.SuperClass, err = p.readClassDesc(); err != nil {
		return nil, err
	}
	p.debugf("read new classdesc: handle %s name %s", hex(int64(cd.handle)), name)
	return cd, nil
}

func (p *Parser) readProxyDesc() (*ClassDesc, error) {
	cd := &ClassDesc{
		contentBase: contentBase{handle: p.handles.allocate()},
		DescType:    ProxyClass,
		Name:        "(proxy class; no name)",
	}
	if err := p.handles.bind(cd.handle, cd); err != nil {
		return nil, err
	}
	var interfaceCount int32
	if err := p.r.readBinary(&interfaceCount); err != nil {
		return nil, err
	}
	if interfaceCount < 0 {
		return nil, validityErrorf("invalid proxy interface count: %d", interfaceCount)
	}
	for i := int32(0); i < interfaceCount; i++ {
		intf, err := p.r.readUTF()
		if err != nil {
			return nil, err
		}
		cd.Interfaces = append(cd.Interfaces, intf)
	}
	var err error
	if cd.Annotations, err = p.readClassAnnotation(); err != nil {
		return nil, err
	}
	if cd.SuperClass, err = p.readClassDesc(); err != nil {
		return nil, err
	}
	p.debugf("read new proxy classdesc: handle %s interfaces %v", hex(int64(cd.handle)), cd.Interfaces)
	return cd, nil
}

func (p *Parser) readPrevObject() (Content, error) {
	var handle int32
	if err := p.r.readBinary(&handle); err != nil {
		return nil, err
	}
	c, err := p.handles.lookup(handle)
	if err != nil {
		return nil, err
	}
	p.debugf("read prev object: handle %s", hex(int64(handle)))
	return c, nil
}

func (p *Parser) readNewObject() (Content, error) {
	cd, err := p.readClassDesc()
	if err != nil {
		return nil, err
	}
	if cd == nil {
		return nil, validityErrorf("object class description can't be null")
	}
	inst := newInstance(p.handles.allocate(), cd)
	if err := p.handles.bind(inst.handle, inst); err != nil {
		return nil, err
	}
	p.debugf("reading new object: handle %s classdesc %s", hex(int64(inst.handle)), cd.Name)
	if err := p.readClassData(inst); err != nil {
		return nil, err
	}
	p.debugf("done reading object for handle %s", hex(int64(inst.handle)))
	return inst, nil
}

func (p *Parser) readNewClass() (Content, error) {
	cd, err := p.readClassDesc()
	if err != nil {
		return nil, err
	}
	if cd == nil {
		return nil, validityErrorf("Class object class description can't be null")
	}
	clazz := &ClassObject{
		contentBase: contentBase{handle: p.handles.allocate()},
		ClassDesc:   cd,
	}
	if err := p.handles.bind(clazz.handle, clazz); err != nil {
		return nil, err
	}
	p.debugf("reading new class: handle %s classdesc %s", hex(int64(clazz.handle)), cd.Name)
	return clazz, nil
}

func (p *Parser) readNewArray() (Content, error) {
	cd, err := p.readClassDesc()
	if err != nil {
		return nil, err
	}
	if cd == nil {
		return nil, validityErrorf("array class description can't be null")
	}
	if len(cd.Name) < 2 {
		return nil, validityErrorf("invalid name in array classdesc: %s", cd.Name)
	}
	elem, err := fieldTypeOf(cd.Name[1])
	if err != nil {
		return nil, err
	}
	arr := &ArrayObject{
		contentBase: contentBase{handle: p.handles.allocate()},
		ClassDesc:   cd,
		ElemType:    elem,
	}
	if err := p.handles.bind(arr.handle, arr); err != nil {
		return nil, err
	}
	var size int32
	if err := p.r.readBinary(&size); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, validityErrorf("invalid array size: %d", size)
	}
	p.debugf("reading new array: handle %s classdesc %s size %d", hex(int64(arr.handle)), cd.Name, size)
	for i := int32(0); i < size; i++ {
		v, err := p.readFieldValue(elem)
		if err != nil {
			return nil, err
		}
		arr.Data = append(arr.Data, v)
	}
	return arr, nil
}

func (p *Parser) readNewEnum() (Content, error) {
	cd, err := p.readClassDesc()
	if err != nil {
		return nil, err
	}
	if cd == nil {
		return nil, validityErrorf("enum class description can't be null")
	}
	handle := p.handles.allocate()
	tc, err := p.r.readByte()
	if err != nil {
		return nil, err
	}
	value, err := p.readString(tc)
	if err != nil {
		return nil, err
	}
	cd.addEnum(value.Value)
	enum := &EnumObject{
		contentBase: contentBase{handle: handle},
		ClassDesc:   cd,
		Value:       value,
	}
	if err := p.handles.bind(handle, enum); err != nil {
		return nil, err
	}
	p.debugf("reading new enum: handle %s constant %s", hex(int64(handle)), value.Value)
	return enum, nil
}

// readString reads a string in a position where a back reference to a prior
// string is permitted. tc is the type code already consumed.
func (p *Parser) readString(tc byte) (*StringObject, error) {
	switch tc {
	case TcReference:
		c, err := p.readPrevObject()
		if err != nil {
			return nil, err
		}
		s, ok := c.(*StringObject)
		if !ok {
			return nil, validityErrorf("got reference for a string, but referenced value was something else")
		}
		return s, nil
	case TcNull:
		return nil, validityErrorf("stream signaled TC_NULL when string type expected")
	case TcString, TcLongstring:
	default:
		return nil, validityErrorf("invalid type code for string: %s", hex(int64(tc)))
	}
	handle := p.handles.allocate()
	var length int
	if tc == TcString {
		var n uint16
		if err := p.r.readBinary(&n); err != nil {
			return nil, err
		}
		length = int(n)
	} else {
		var n int64
		if err := p.r.readBinary(&n); err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, validityErrorf("invalid long string length: %d", n)
		}
		if n > math.MaxInt32 {
			return nil, validityErrorf("long string is too long: %d", n)
		}
		if n < 65536 {
			p.log.Warningf("small string length encoded as TC_LONGSTRING: %d", n)
		}
		length = int(n)
	}
	data, err := p.r.readBytes(length)
	if err != nil {
		return nil, err
	}
	s, err := newStringObject(handle, data)
	if err != nil {
		return nil, err
	}
	if err := p.handles.bind(handle, s); err != nil {
		return nil, err
	}
	p.debugf("read new string: handle %s size %d", hex(int64(handle)), length)
	return s, nil
}

func (p *Parser) readBlockData(tc byte) (Content, error) {
	var size int32
	if tc == TcBlockdata {
		var b uint8
		if err := p.r.readBinary(&b); err != nil {
			return nil, err
		}
		size = int32(b)
	} else {
		if err := p.r.readBinary(&size); err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, validityErrorf("invalid value for blockdata size: %d", size)
		}
	}
	buf, err := p.r.readBytes(int(size))
	if err != nil {
		return nil, err
	}
	p.debugf("read blockdata of size %d", size)
	return newBlockData(buf), nil
}

// readException handles TC_EXCEPTION at a content boundary: the handle table
// is reset, the serialized exception object is read, and the table is reset
// again. The written object must be an instance; whether it actually
// descends from Throwable is not checked, since that would require loading
// classes.
func (p *Parser) readException() (Content, error) {
	p.reset()
	tc, err := p.r.readByte()
	if err != nil {
		return nil, err
	}
	if tc == TcReset {
		return nil, validityErrorf("TC_RESET for object while reading exception")
	}
	c, err := p.readContent(tc, false)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, validityErrorf("stream signaled for an exception, but the exception object was null")
	}
	inst, ok := c.(*Instance)
	if !ok {
		return nil, validityErrorf("stream signaled for an exception, but content is not an object")
	}
	inst.markExceptionObject()
	p.reset()
	return inst, nil
}

// readClassAnnotation reads a zero-or-more sequence of content items
// terminated by TC_ENDBLOCKDATA. A TC_RESET in this position resets the
// handle table and the loop continues.
func (p *Parser) readClassAnnotation() ([]Content, error) {
	var list []Content
	for {
		tc, err := p.r.readByte()
		if err != nil {
			return nil, err
		}
		if tc == TcEndblockdata {
			return list, nil
		}
		if tc == TcReset {
			p.reset()
			continue
		}
		c, err := p.readContent(tc, true)
		if err != nil {
			return nil, err
		}
		if c != nil && c.ExceptionObject() {
			return nil, &exceptionReadError{exception: c}
		}
		list = append(list, c)
	}
}

// readClassData reads per-instance field data, walking the class hierarchy
// from the eldest ancestor to the most-derived class.
func (p *Parser) readClassData(inst *Instance) error {
	for _, cd := range inst.ClassDesc.hierarchy() {
		switch {
		case cd.Flags&ScSerializable != 0:
			if cd.Flags&ScExternalizable != 0 {
				return validityErrorf("SC_EXTERNALIZABLE and SC_SERIALIZABLE encountered together")
			}
			values := make(map[*Field]interface{})
			for _, f := range cd.Fields {
				v, err := p.readFieldValue(f.Type)
				if err != nil {
					return err
				}
				values[f] = v
			}
			inst.FieldData[cd] = values
			if cd.Flags&ScWriteMethod != 0 {
				if cd.Flags&ScEnum != 0 {
					return validityErrorf("SC_ENUM and SC_WRITE_METHOD encountered together")
				}
				ann, err := p.readClassAnnotation()
				if err != nil {
					return err
				}
				inst.Annotations[cd] = ann
			}
		case cd.Flags&ScExternalizable != 0:
			if cd.Flags&ScBlockData == 0 {
				// Protocol version 1 external data has no framing; it
				// cannot be skipped without invoking readExternal.
				return validityErrorf("hit externalizable with no SC_BLOCK_DATA; can't interpret data")
			}
			ann, err := p.readClassAnnotation()
			if err != nil {
				return err
			}
			inst.Annotations[cd] = ann
		}
	}
	return nil
}

// readFieldValue reads one value of the given kind: a boxed primitive, or a
// nested content item for object and array kinds.
func (p *Parser) readFieldValue(ft FieldType) (interface{}, error) {
	switch ft {
	case FieldByte:
		var v int8
		err := p.r.readBinary(&v)
		return v, err
	case FieldChar:
		var v uint16
		err := p.r.readBinary(&v)
		return v, err
	case FieldDouble:
		var v float64
		err := p.r.readBinary(&v)
		return v, err
	case FieldFloat:
		var v float32
		err := p.r.readBinary(&v)
		return v, err
	case FieldInt:
		var v int32
		err := p.r.readBinary(&v)
		return v, err
	case FieldLong:
		var v int64
		err := p.r.readBinary(&v)
		return v, err
	case FieldShort:
		var v int16
		err := p.r.readBinary(&v)
		return v, err
	case FieldBoolean:
		var v bool
		err := p.r.readBinary(&v)
		return v, err
	case FieldObject, FieldArray:
		tc, err := p.r.readByte()
		if err != nil {
			return nil, err
		}
		if ft == FieldArray && tc != TcArray && tc != TcNull && tc != TcReference {
			return nil, validityErrorf("array type listed, but type code is not TC_ARRAY: %s", hex(int64(tc)))
		}
		c, err := p.readContent(tc, false)
		if err != nil {
			return nil, err
		}
		if c != nil && c.ExceptionObject() {
			return nil, &exceptionReadError{exception: c}
		}
		if c == nil {
			return nil, nil
		}
		return c, nil
	default:
		return nil, validityErrorf("can't process field type: %s", hex(int64(ft)))
	}
}
