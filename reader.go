package jdeserialize

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// reader wraps the input stream with buffering, big-endian primitive reads
// and a recording facility. Recording captures every byte consumed since the
// last mark; the embedded-exception handler uses the recorded bytes to retain
// the partial write that preceded a TC_EXCEPTION.
type reader struct {
	br        *bufio.Reader
	recording bool
	recorded  bytes.Buffer
}

func newReader(r io.Reader) *reader {
	return &reader{br: bufio.NewReader(r)}
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.br.Read(p)
	if r.recording && n > 0 {
		r.recorded.Write(p[:n])
	}
	return n, err
}

// mark starts a new recording window, discarding previously recorded bytes.
func (r *reader) mark() {
	r.recording = true
	r.recorded.Reset()
}

// snapshot returns a copy of the bytes consumed since the last mark.
func (r *reader) snapshot() []byte {
	p := make([]byte, r.recorded.Len())
	copy(p, r.recorded.Bytes())
	return p
}

// readTypeCode reads a single byte and passes io.EOF through unchanged.
// Only the top-level read loop may see a clean EOF; everywhere else use
// readByte, which treats end of input as truncation.
func (r *reader) readTypeCode() (byte, error) {
	var p [1]byte
	n, err := r.Read(p[:])
	if n == 1 {
		return p[0], nil
	}
	if err == nil {
		err = io.EOF
	}
	return 0, err
}

func (r *reader) readByte() (byte, error) {
	b, err := r.readTypeCode()
	if err == io.EOF {
		return 0, io.ErrUnexpectedEOF
	}
	return b, err
}

func (r *reader) readBinary(dsts ...interface{}) error {
	for _, dst := range dsts {
		if err := binary.Read(r, binary.BigEndian, dst); err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	p := make([]byte, n)
	if _, err := io.ReadFull(r, p); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return p, nil
}

// readUTF reads a length-prefixed string: a big-endian uint16 byte count
// followed by that many bytes of modified UTF-8.
func (r *reader) readUTF() (string, error) {
	var n uint16
	if err := r.readBinary(&n); err != nil {
		return "", err
	}
	p, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return decodeModifiedUTF8(p)
}
