package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/robotalks/motorlink/pkg/l0/motorlink"
)

type testStream struct {
	*io.PipeReader
	pw *io.PipeWriter

	lock    sync.Mutex
	written bytes.Buffer
}

func newTestStream() *testStream {
	pr, pw := io.Pipe()
	return &testStream{PipeReader: pr, pw: pw}
}

func (s *testStream) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.written.Write(p)
}

func (s *testStream) Close() error {
	return s.PipeReader.Close()
}

func (s *testStream) inject(t *testing.T, p []byte) {
	_, err := s.pw.Write(p)
	require.NoError(t, err)
}

func (s *testStream) writtenBytes() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]byte{}, s.written.Bytes()...)
}

type ingested struct {
	link int
	data []byte
}

type testIngester chan ingested

func (i testIngester) Ingest(link int, data []byte, at time.Time) error {
	i <- ingested{link: link, data: data}
	return nil
}

func (i testIngester) expect(t *testing.T, link int, data []byte) {
	select {
	case in := <-i:
		require.Equal(t, link, in.link)
		require.Equal(t, data, in.data)
	case <-time.After(time.Second):
		t.Fatal("expect ingest timeout")
	}
}

func waitOpen(t *testing.T, port *Port) {
	require.Eventually(t, func() bool {
		port.lock.Lock()
		defer port.lock.Unlock()
		return port.dev != nil
	}, time.Second, time.Millisecond)
}

func TestPortPump(t *testing.T) {
	stream := newTestStream()
	ingester := make(testIngester, 4)
	port := NewPortWith(2, stream, ingester)
	ports := NewPorts(port)

	_, err := port.Write([]byte{1})
	require.ErrorIs(t, err, ErrNotOpen)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- port.Run(ctx) }()
	waitOpen(t, port)

	stream.inject(t, []byte("AT+VERSION"))
	ingester.expect(t, 2, []byte("AT+VERSION"))
	stream.inject(t, []byte{0xaa, 0x80})
	ingester.expect(t, 2, []byte{0xaa, 0x80})

	require.NoError(t, ports.Transmit(2, motorlink.Modern.HandshakeResponse))
	require.Equal(t, motorlink.Modern.HandshakeResponse, stream.writtenBytes())
	require.ErrorIs(t, ports.Transmit(1, []byte{1}), motorlink.ErrInvalidLink)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("port not stopped")
	}
	_, err = port.Write([]byte{1})
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestPortStreamError(t *testing.T) {
	stream := newTestStream()
	port := NewPortWith(1, stream, make(testIngester, 1))
	errCh := make(chan error, 1)
	go func() { errCh <- port.Run(context.Background()) }()
	waitOpen(t, port)
	stream.pw.CloseWithError(io.ErrUnexpectedEOF)
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	case <-time.After(time.Second):
		t.Fatal("port not stopped")
	}
}

func TestPortReopen(t *testing.T) {
	stream := newTestStream()
	ingester := make(testIngester, 1)
	var attempts int
	port := NewPort(1, "/dev/ttyTEST", 0, ingester)
	require.Equal(t, DefaultBaudRate, port.Mode.BaudRate)
	port.ReconnectDelay = time.Millisecond
	port.Open = func(path string, mode *serial.Mode) (io.ReadWriteCloser, error) {
		require.Equal(t, "/dev/ttyTEST", path)
		require.Equal(t, serial.NoParity, mode.Parity)
		attempts++
		if attempts < 3 {
			return nil, errors.New("busy")
		}
		return stream, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go port.Run(ctx)
	waitOpen(t, port)
	stream.inject(t, []byte{1, 2, 3})
	ingester.expect(t, 1, []byte{1, 2, 3})
	require.Equal(t, 3, attempts)
}

func TestPortFeedsManager(t *testing.T) {
	stream := newTestStream()
	m := motorlink.NewManager(motorlink.DefaultConfig())
	port := NewPortWith(1, stream, m)
	m.Transmitter = NewPorts(port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go port.Run(ctx)
	waitOpen(t, port)

	stream.inject(t, []byte("AT+VERSION"))
	require.Eventually(t, func() bool {
		m.Process(time.Now())
		state, _ := m.State(1)
		return state == motorlink.StatePairing
	}, time.Second, time.Millisecond)
	require.Equal(t, motorlink.Modern.HandshakeResponse, stream.writtenBytes())
}
