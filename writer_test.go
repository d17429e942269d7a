package jdeserialize

import (
	"bytes"
	"encoding/binary"
)

// streamBuilder assembles serialization streams for tests, mirroring the
// writes an ObjectOutputStream would produce.
type streamBuilder struct {
	buf bytes.Buffer
}

// newStream starts a builder with the stream header already written.
func newStream() *streamBuilder {
	b := &streamBuilder{}
	return b.binary(StreamMagic, StreamVersion)
}

func (b *streamBuilder) binary(values ...interface{}) *streamBuilder {
	for _, value := range values {
		if err := binary.Write(&b.buf, binary.BigEndian, value); err != nil {
			panic(err)
		}
	}
	return b
}

// utf writes a length-prefixed string. Test data is ASCII, for which
// standard and modified UTF-8 coincide.
func (b *streamBuilder) utf(s string) *streamBuilder {
	p := []byte(s)
	return b.binary(uint16(len(p)), p)
}

// str writes a TC_STRING.
func (b *streamBuilder) str(s string) *streamBuilder {
	return b.binary(TcString).utf(s)
}

// classDesc begins a TC_CLASSDESC; the caller writes the field descriptors
// and finishes with end.
func (b *streamBuilder) classDesc(name string, suid int64, flags byte, fieldCount int16) *streamBuilder {
	return b.binary(TcClassdesc).utf(name).binary(suid, flags, fieldCount)
}

// end terminates a class description: empty annotation list, null super.
func (b *streamBuilder) end() *streamBuilder {
	return b.binary(TcEndblockdata, TcNull)
}

func (b *streamBuilder) bytes() []byte {
	return b.buf.Bytes()
}

func (b *streamBuilder) reader() *bytes.Reader {
	return bytes.NewReader(b.bytes())
}
