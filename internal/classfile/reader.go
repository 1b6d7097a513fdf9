// Package classfile decodes the standard Java class-file binary format into
// an in-memory definition. It performs no I/O: callers hand it a byte slice
// obtained however they like (file, archive entry, network fetch).
package classfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// reader wraps a byte slice with the same big-endian primitive-read helpers
// the teacher's hprof BinaryReader exposes, minus anything hprof-specific.
type reader struct {
	br        *bufio.Reader
	bytesRead int64
}

func newReader(data []byte) *reader {
	return &reader{br: bufio.NewReader(bytes.NewReader(data))}
}

func (r *reader) u1() (uint8, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("read u1: %w", err)
	}
	r.bytesRead++
	return b, nil
}

func (r *reader) u2() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return 0, fmt.Errorf("read u2: %w", err)
	}
	r.bytesRead += 2
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (r *reader) u4() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return 0, fmt.Errorf("read u4: %w", err)
	}
	r.bytesRead += 4
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (r *reader) i4() (int32, error) {
	v, err := r.u4()
	return int32(v), err
}

func (r *reader) u8() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return 0, fmt.Errorf("read u8: %w", err)
	}
	r.bytesRead += 8
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (r *reader) bytesN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, fmt.Errorf("read %d bytes: %w", n, err)
	}
	r.bytesRead += int64(n)
	return buf, nil
}
