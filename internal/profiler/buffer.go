package profiler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// maxStringLen bounds encoded string arguments.
	maxStringLen = 255

	// maxArgsLen bounds the args of one stream record.
	maxArgsLen = 0xFFFF
)

// ErrShortBuffer is returned when decoding runs past the end of the data.
var ErrShortBuffer = errors.New("profiler record truncated")

// Buffer accumulates little-endian encoded arguments.
type Buffer struct {
	buf []byte
}

// Reset clears the buffer, keeping its storage.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// Bytes returns the encoded arguments. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of encoded bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// PutU8 encodes a u8 argument.
func (b *Buffer) PutU8(v uint8) { b.buf = append(b.buf, v) }

// PutS8 encodes an s8 argument.
func (b *Buffer) PutS8(v int8) { b.buf = append(b.buf, byte(v)) }

// PutBool encodes v as a u8 argument.
func (b *Buffer) PutBool(v bool) {
	if v {
		b.PutU8(1)
		return
	}
	b.PutU8(0)
}

// PutU16 encodes a u16 argument.
func (b *Buffer) PutU16(v uint16) { b.buf = binary.LittleEndian.AppendUint16(b.buf, v) }

// PutS16 encodes an s16 argument.
func (b *Buffer) PutS16(v int16) { b.PutU16(uint16(v)) }

// PutU32 encodes a u32 argument.
func (b *Buffer) PutU32(v uint32) { b.buf = binary.LittleEndian.AppendUint32(b.buf, v) }

// PutS32 encodes an s32 argument.
func (b *Buffer) PutS32(v int32) { b.PutU32(uint32(v)) }

// PutString encodes a length-prefixed string, truncated to at most 255
// bytes on a rune boundary.
func (b *Buffer) PutString(s string) {
	s = truncate(s, maxStringLen)
	b.buf = append(b.buf, byte(len(s)))
	b.buf = append(b.buf, s...)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// PutTime encodes a duration as whole milliseconds.
func (b *Buffer) PutTime(d time.Duration) {
	b.PutU32(uint32(d.Milliseconds()))
}

// Decode decodes args according to info. Integers decode to int64, strings
// to string and times to time.Duration.
func Decode(info Info, args []byte) ([]any, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	values := make([]any, 0, len(info.Types))
	for i, t := range info.Types {
		need := 0
		switch t {
		case ArgU8, ArgS8, ArgString:
			need = 1
		case ArgU16, ArgS16:
			need = 2
		case ArgU32, ArgS32, ArgTime:
			need = 4
		default:
			return nil, fmt.Errorf("argument %q: unknown type %d", info.Labels[i], t)
		}
		if len(args) < need {
			return nil, fmt.Errorf("argument %q: %w", info.Labels[i], ErrShortBuffer)
		}

		switch t {
		case ArgU8:
			values = append(values, int64(args[0]))
		case ArgS8:
			values = append(values, int64(int8(args[0])))
		case ArgU16:
			values = append(values, int64(binary.LittleEndian.Uint16(args)))
		case ArgS16:
			values = append(values, int64(int16(binary.LittleEndian.Uint16(args))))
		case ArgU32:
			values = append(values, int64(binary.LittleEndian.Uint32(args)))
		case ArgS32:
			values = append(values, int64(int32(binary.LittleEndian.Uint32(args))))
		case ArgTime:
			values = append(values, time.Duration(binary.LittleEndian.Uint32(args))*time.Millisecond)
		case ArgString:
			n := int(args[0])
			if len(args) < 1+n {
				return nil, fmt.Errorf("argument %q: %w", info.Labels[i], ErrShortBuffer)
			}
			values = append(values, string(args[1:1+n]))
			need = 1 + n
		}
		args = args[need:]
	}

	return values, nil
}
