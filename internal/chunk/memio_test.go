package chunk

import "fmt"

// memIO is a minimal in-memory IO implementation used only by this
// package's tests: a growable byte slice with a seekable cursor.
type memIO struct {
	data []byte
	pos  uint64
}

func newMemIO() *memIO { return &memIO{} }

func (m *memIO) EOF() bool { return m.pos >= uint64(len(m.data)) }

func (m *memIO) Read(buf []byte) error {
	if m.pos+uint64(len(buf)) > uint64(len(m.data)) {
		return fmt.Errorf("memio: read past end")
	}
	copy(buf, m.data[m.pos:m.pos+uint64(len(buf))])
	m.pos += uint64(len(buf))
	return nil
}

func (m *memIO) Write(buf []byte) error {
	need := m.pos + uint64(len(buf))
	if need > uint64(len(m.data)) {
		grown := make([]byte, need)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:need], buf)
	m.pos = need
	return nil
}

func (m *memIO) Tell() (uint64, error) { return m.pos, nil }

func (m *memIO) Seek(offset uint64) error {
	m.pos = offset
	return nil
}
