package jdeserialize

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Header(t *testing.T) {
	assert.NoError(t, NewParser().Run(bytes.NewReader([]byte{0xac, 0xed, 0x00, 0x05}), true))

	err := NewParser().Run(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x05}), true)
	assert.Error(t, err)
	var ve *ValidityError
	assert.True(t, errors.As(err, &ve))

	assert.Error(t, NewParser().Run(bytes.NewReader([]byte{0xac, 0xed, 0x00, 0x00}), true))
}

func TestRun_PrimitiveInstance(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcObject).
		classDesc("Blob", 1, ScSerializable, 2).
		binary(byte('I')).utf("a").
		binary(byte('L')).utf("b").str("Ljava/lang/String;").
		end().
		binary(int32(42)).
		str("zoo")

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	contents := p.Contents()
	require.Len(contents, 1)
	inst, ok := contents[0].(*Instance)
	require.True(ok)
	require.Equal(baseWireHandle+2, inst.Handle())

	cd := inst.ClassDesc
	require.Equal("Blob", cd.Name)
	require.Equal(int64(1), cd.SerialVersionUID)
	require.Len(cd.Fields, 2)
	require.Equal(FieldInt, cd.Fields[0].Type)
	require.Equal("a", cd.Fields[0].Name)
	require.Equal(FieldObject, cd.Fields[1].Type)
	require.Equal("b", cd.Fields[1].Name)
	require.Equal("Ljava/lang/String;", cd.Fields[1].ClassName.Value)

	values := inst.FieldData[cd]
	require.NotNil(values)
	require.Equal(int32(42), values[cd.Fields[0]])
	s, ok := values[cd.Fields[1]].(*StringObject)
	require.True(ok)
	require.Equal("zoo", s.Value)
}

func TestRun_HandleReuse(t *testing.T) {
	require := require.New(t)
	b := newStream().
		str("zoo").
		binary(TcReference, baseWireHandle)

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	contents := p.Contents()
	require.Len(contents, 2)
	first, ok := contents[0].(*StringObject)
	require.True(ok)
	require.Equal("zoo", first.Value)
	require.Same(first, contents[1])
}

func TestRun_FieldDataKeysAreSerializableChain(t *testing.T) {
	require := require.New(t)
	// Sub extends Super; both serializable, each with one int field.
	b := newStream().
		binary(TcObject).
		classDesc("Sub", 2, ScSerializable, 1).
		binary(byte('I')).utf("x").
		binary(TcEndblockdata).
		classDesc("Super", 1, ScSerializable, 1).
		binary(byte('I')).utf("y").
		end().
		binary(int32(7)). // Super.y, eldest first
		binary(int32(8))  // Sub.x

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	inst := p.Contents()[0].(*Instance)
	sub := inst.ClassDesc
	super := sub.SuperClass
	require.NotNil(super)
	require.Equal("Super", super.Name)
	require.Len(inst.FieldData, 2)
	require.Equal(int32(7), inst.FieldData[super][super.Fields[0]])
	require.Equal(int32(8), inst.FieldData[sub][sub.Fields[0]])
}

func TestRun_PrimitiveArray(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcArray).
		classDesc("[I", 0, ScSerializable, 0).
		end().
		binary(int32(3), int32(1), int32(2), int32(3))

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	arr, ok := p.Contents()[0].(*ArrayObject)
	require.True(ok)
	require.Equal(FieldInt, arr.ElemType)
	require.Equal([]interface{}{int32(1), int32(2), int32(3)}, arr.Data)
}

func TestRun_Enum(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcEnum).
		classDesc("Color", 0, ScSerializable|ScEnum, 0).
		end().
		str("RED")

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	enum, ok := p.Contents()[0].(*EnumObject)
	require.True(ok)
	require.Equal("RED", enum.Value.Value)
	require.NotZero(enum.ClassDesc.Flags & ScEnum)
	require.Equal([]string{"RED"}, enum.ClassDesc.EnumConstants)
}

func TestRun_ClassObject(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcClass).
		classDesc("Blob", 1, ScSerializable, 0).
		end()

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	clazz, ok := p.Contents()[0].(*ClassObject)
	require.True(ok)
	require.Equal("Blob", clazz.ClassDesc.Name)
}

func TestRun_ProxyClassDesc(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcProxyclassdesc, int32(2)).
		utf("java.util.Comparator").
		utf("java.io.Serializable").
		end()

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	cd, ok := p.Contents()[0].(*ClassDesc)
	require.True(ok)
	require.Equal(ProxyClass, cd.DescType)
	require.Equal([]string{"java.util.Comparator", "java.io.Serializable"}, cd.Interfaces)
	require.Empty(cd.Fields)
}

func TestRun_BlockData(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcBlockdata, uint8(3), []byte{1, 2, 3}).
		binary(TcBlockdatalong, int32(2), []byte{9, 8})

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	contents := p.Contents()
	require.Len(contents, 2)
	require.Equal([]byte{1, 2, 3}, contents[0].(*BlockData).Buf)
	require.Equal([]byte{9, 8}, contents[1].(*BlockData).Buf)
}

func TestRun_BlockDataNotAllowedInObjectContext(t *testing.T) {
	// A block data record is not valid as an object field value.
	b := newStream().
		binary(TcObject).
		classDesc("Blob", 1, ScSerializable, 1).
		binary(byte('L')).utf("b").str("Ljava/lang/String;").
		end().
		binary(TcBlockdata, uint8(1), byte(0))

	err := NewParser().Run(b.reader(), true)
	var ve *ValidityError
	require.True(t, errors.As(err, &ve))
}

func TestRun_CustomWriteAnnotation(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcObject).
		classDesc("Blob5", 5, ScSerializable|ScWriteMethod, 1).
		binary(byte('I')).utf("a").
		end().
		binary(int32(7)).                         // default field data
		binary(TcBlockdata, uint8(4), int32(99)). // custom writeObject payload
		binary(TcEndblockdata)

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	inst := p.Contents()[0].(*Instance)
	cd := inst.ClassDesc
	require.Equal(int32(7), inst.FieldData[cd][cd.Fields[0]])

	ann := inst.Annotations[cd]
	require.Len(ann, 1)
	bd, ok := ann[0].(*BlockData)
	require.True(ok)
	require.Equal([]byte{0, 0, 0, 99}, bd.Buf)
}

func TestRun_Reset(t *testing.T) {
	require := require.New(t)
	b := newStream().
		str("zoo").
		binary(TcReset).
		str("bar")

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	contents := p.Contents()
	require.Len(contents, 2)
	// Handles restart at the base wire handle after a reset.
	require.Equal(baseWireHandle, contents[0].Handle())
	require.Equal(baseWireHandle, contents[1].Handle())
	require.Len(p.HandleMaps(), 2)
}

func TestRun_EmbeddedException(t *testing.T) {
	require := require.New(t)

	partial := (&streamBuilder{}).
		binary(TcObject).
		classDesc("Blob", 1, ScSerializable, 1).
		binary(byte('L')).utf("b").str("Ljava/lang/String;").
		end()

	b := newStream()
	b.binary(partial.bytes()).
		binary(TcException).
		binary(TcObject).
		classDesc("java.io.IOException", 9, ScSerializable, 0).
		end()

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	contents := p.Contents()
	require.Len(contents, 1)
	es, ok := contents[0].(*ExceptionState)
	require.True(ok)

	exc, ok := es.Exception.(*Instance)
	require.True(ok)
	require.True(exc.ExceptionObject())
	require.Equal("java.io.IOException", exc.ClassDesc.Name)
	// The exception was read in a fresh epoch: classdesc, then instance.
	require.Equal(baseWireHandle+1, exc.Handle())
	require.Equal(exc.Handle(), es.Handle())

	// The recorded data covers everything from the start of the failed
	// write through the TC_EXCEPTION marker (and possibly beyond).
	expectedPrefix := append(partial.bytes(), TcException)
	require.True(bytes.HasPrefix(es.Data, expectedPrefix))

	// Two archived epochs: the partial write's, and the exception's.
	require.Len(p.HandleMaps(), 2)
}

func TestRun_LongStringToleratesSmallLength(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcLongstring, int64(3), []byte("foo"))

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	s, ok := p.Contents()[0].(*StringObject)
	require.True(ok)
	require.Equal("foo", s.Value)
}

func TestRun_LongStringNegativeLength(t *testing.T) {
	b := newStream().binary(TcLongstring, int64(-1))
	err := NewParser().Run(b.reader(), true)
	var ve *ValidityError
	require.True(t, errors.As(err, &ve))
}

func TestRun_NullTopLevel(t *testing.T) {
	require := require.New(t)
	b := newStream().binary(TcNull)

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))
	require.Len(p.Contents(), 1)
	require.Nil(p.Contents()[0])
}

func TestRun_InvalidTypeCode(t *testing.T) {
	b := newStream().binary(byte(0x42))
	err := NewParser().Run(b.reader(), true)
	var ve *ValidityError
	require.True(t, errors.As(err, &ve))
}

func TestRun_DanglingReference(t *testing.T) {
	b := newStream().binary(TcReference, int32(baseWireHandle+5))
	err := NewParser().Run(b.reader(), true)
	var ve *ValidityError
	require.True(t, errors.As(err, &ve))
}

func TestRun_TruncatedStream(t *testing.T) {
	b := newStream().
		binary(TcObject).
		classDesc("Blob", 1, ScSerializable, 1).
		binary(byte('I')).utf("a").
		end()
	// Field value missing entirely.
	err := NewParser().Run(b.reader(), true)
	require.Error(t, err)
}

func TestRun_ExternalizableWithoutBlockDataFails(t *testing.T) {
	b := newStream().
		binary(TcObject).
		classDesc("Ext", 1, ScExternalizable, 0).
		end()
	err := NewParser().Run(b.reader(), true)
	var ve *ValidityError
	require.True(t, errors.As(err, &ve))
}

func TestRun_ExternalizableWithBlockData(t *testing.T) {
	require := require.New(t)
	b := newStream().
		binary(TcObject).
		classDesc("Ext", 1, ScExternalizable|ScBlockData, 0).
		end().
		binary(TcBlockdata, uint8(2), []byte{1, 2}).
		binary(TcEndblockdata)

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	inst := p.Contents()[0].(*Instance)
	ann := inst.Annotations[inst.ClassDesc]
	require.Len(ann, 1)
	require.Equal([]byte{1, 2}, ann[0].(*BlockData).Buf)
}

func TestRun_SerializableAndExternalizableFails(t *testing.T) {
	b := newStream().
		binary(TcObject).
		classDesc("Both", 1, ScSerializable|ScExternalizable, 0).
		end()
	err := NewParser().Run(b.reader(), true)
	require.Error(t, err)
}

func TestRun_NegativeFieldCount(t *testing.T) {
	b := newStream().
		binary(TcObject).
		binary(TcClassdesc).utf("Bad").binary(int64(1), ScSerializable, int16(-1))
	err := NewParser().Run(b.reader(), true)
	var ve *ValidityError
	require.True(t, errors.As(err, &ve))
}

func TestRun_ClassDescSelfReferenceFromAnnotation(t *testing.T) {
	require := require.New(t)
	// The classdesc handle must be bound before its annotation list is
	// read, so the annotation can reference the class being defined.
	b := newStream().
		binary(TcClassdesc).utf("Self").binary(int64(1), ScSerializable, int16(0)).
		binary(TcReference, baseWireHandle).
		binary(TcEndblockdata).
		binary(TcNull)

	p := NewParser()
	require.NoError(p.Run(b.reader(), true))

	cd, ok := p.Contents()[0].(*ClassDesc)
	require.True(ok)
	require.Len(cd.Annotations, 1)
	require.Same(cd, cd.Annotations[0])
}
