package profiler

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Memory keeps every descriptor and record in memory. It is meant for tests
// and for short interactive sessions.
type Memory struct {
	mu      sync.Mutex
	types   map[uint16]TypeDescriptor
	records []Record
}

// NewMemory creates an empty in-memory profiler.
func NewMemory() *Memory {
	return &Memory{types: make(map[uint16]TypeDescriptor)}
}

// RegisterType stores the descriptor.
func (m *Memory) RegisterType(d TypeDescriptor) error {
	if err := d.Info.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[d.ID] = d
	return nil
}

// Emit appends the record. Args are copied.
func (m *Memory) Emit(r Record) {
	if r.Args != nil {
		r.Args = append([]byte(nil), r.Args...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Records returns a copy of the recorded entries.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Type returns a registered descriptor.
func (m *Memory) Type(id uint16) (TypeDescriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.types[id]
	return d, ok
}

// Frame tags of the binary stream format.
const (
	FrameSession    byte = 'S'
	FrameDescriptor byte = 'D'
	FrameRecord     byte = 'R'
)

// Stream writes descriptors and records to w in a compact little-endian
// framing:
//
//	S  session-uuid[16]
//	D  id:u16 name-len:u8 name argc:u8 { type:u8 label-len:u8 label }*
//	R  kind:u8 type:u16 seq:u64 unix-nanos:i64 args-len:u16 args
//
// Writes are buffered; Close flushes. Write failures are counted and the
// stream stops writing after the first one.
type Stream struct {
	mu      sync.Mutex
	w       *bufio.Writer
	closer  io.Closer
	session uuid.UUID
	err     error
	dropped atomic.Uint64
	clipped atomic.Uint64
}

// NewStream creates a stream sink and writes the session frame.
// If w implements io.Closer it is closed by Close.
func NewStream(w io.Writer, session uuid.UUID) *Stream {
	s := &Stream{
		w:       bufio.NewWriter(w),
		session: session,
	}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}

	s.mu.Lock()
	s.write(append([]byte{FrameSession}, session[:]...))
	s.mu.Unlock()
	return s
}

// Session returns the session identifier written at the start of the stream.
func (s *Stream) Session() uuid.UUID { return s.session }

// RegisterType writes a descriptor frame.
func (s *Stream) RegisterType(d TypeDescriptor) error {
	if err := d.Info.Validate(); err != nil {
		return err
	}

	frame := []byte{FrameDescriptor}
	frame = binary.LittleEndian.AppendUint16(frame, d.ID)
	frame = appendShortString(frame, d.Name)
	frame = append(frame, byte(len(d.Info.Types)))
	for i, t := range d.Info.Types {
		frame = append(frame, byte(t))
		frame = appendShortString(frame, d.Info.Labels[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(frame)
	return s.err
}

// Emit writes a record frame. Args beyond 0xFFFF bytes are cut off and the
// record is counted in Truncated.
func (s *Stream) Emit(r Record) {
	args := r.Args
	if len(args) > maxArgsLen {
		args = args[:maxArgsLen]
		s.clipped.Add(1)
	}

	frame := make([]byte, 0, 24+len(args))
	frame = append(frame, FrameRecord, byte(r.Kind))
	frame = binary.LittleEndian.AppendUint16(frame, r.TypeID)
	frame = binary.LittleEndian.AppendUint64(frame, r.Seq)
	frame = binary.LittleEndian.AppendUint64(frame, uint64(r.Timestamp.UnixNano()))
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(args)))
	frame = append(frame, args...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(frame)
}

// Dropped returns how many frames were not written because of an error.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

// Truncated returns how many records were written with clipped args.
func (s *Stream) Truncated() uint64 { return s.clipped.Load() }

// Flush writes buffered frames to the underlying writer.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.err = s.w.Flush()
	return s.err
}

// Close flushes and closes the underlying writer if it is closable.
func (s *Stream) Close() error {
	err := s.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// write must be called with s.mu held.
func (s *Stream) write(frame []byte) {
	if s.err != nil {
		s.dropped.Add(1)
		return
	}
	if _, err := s.w.Write(frame); err != nil {
		s.err = err
		s.dropped.Add(1)
	}
}

func appendShortString(b []byte, str string) []byte {
	str = truncate(str, maxStringLen)
	b = append(b, byte(len(str)))
	return append(b, str...)
}
