package posefeed

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// MockPort implements Porter for dev mode, replaying fixture lines on a
// timer to simulate the localisation unit.
type MockPort struct {
	io.Reader
	closer io.Closer
}

// Close closes the underlying pipe.
func (m *MockPort) Close() error { return m.closer.Close() }

// NewMockMux creates a Mux backed by a mock port that emits the given
// fixture block every interval.
func NewMockMux(fixtures []byte, interval time.Duration) *Mux[*MockPort] {
	r, w := io.Pipe()

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := w.Write(fixtures); err != nil {
				return
			}
		}
	}()

	return NewMux(&MockPort{Reader: r, closer: r})
}

// TestablePort implements Porter with scripted reads for unit tests.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls.
	ReadBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error

	// Closed indicates whether Close was called.
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestablePort creates a new TestablePort.
func NewTestablePort() *TestablePort {
	p := &TestablePort{ReadBuffer: bytes.NewBuffer(nil)}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read reads from the scripted buffer.
func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("port closed")
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	if p.BlockReads && p.ReadBuffer.Len() == 0 {
		for !p.Closed && p.ReadBuffer.Len() == 0 {
			p.readCond.Wait()
		}
		if p.Closed {
			return 0, io.EOF
		}
	}

	return p.ReadBuffer.Read(b)
}

// Close marks the port as closed and wakes any blocked readers.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.readCond.Broadcast()
	return nil
}

// AddReadData appends data to be returned by subsequent Read calls.
func (p *TestablePort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadBuffer.Write(data)
	p.readCond.Signal()
}
