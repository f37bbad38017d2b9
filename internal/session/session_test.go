package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...contracts.Field)  {}
func (nopLogger) Error(string, ...contracts.Field) {}
func (nopLogger) Debug(string, ...contracts.Field) {}
func (nopLogger) Warn(string, ...contracts.Field)  {}
func (nopLogger) Fatal(string, ...contracts.Field) {}
func (nopLogger) Field() contracts.Field           { return nopField{} }
func (nopLogger) SetLevel(contracts.LogLevel)      {}

type nopField struct{}

func (f nopField) Bool(string, bool) contracts.Field       { return f }
func (f nopField) Int(string, int) contracts.Field         { return f }
func (f nopField) Float64(string, float64) contracts.Field { return f }
func (f nopField) String(string, string) contracts.Field   { return f }
func (f nopField) Time(string, time.Time) contracts.Field  { return f }
func (f nopField) Int64(string, int64) contracts.Field     { return f }
func (f nopField) Error(string, error) contracts.Field     { return f }
func (f nopField) Uint64(string, uint64) contracts.Field   { return f }
func (f nopField) Uint8(string, uint8) contracts.Field     { return f }

type transferRecord struct {
	out   bool
	req   uint8
	value uint16
}

type fakeTransport struct {
	mu      sync.Mutex
	closed  bool
	inErr   error
	outErr  error
	history []transferRecord
}

func (t *fakeTransport) ControlIn(req uint8, value uint16, length int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, transferRecord{req: req, value: value})
	if t.inErr != nil {
		return nil, t.inErr
	}
	return make([]byte, length), nil
}

func (t *fakeTransport) ControlOut(req uint8, value uint16, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, transferRecord{out: true, req: req, value: value})
	return t.outErr
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) records() []transferRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]transferRecord, len(t.history))
	copy(out, t.history)
	return out
}

type fakeOpener struct {
	mu      sync.Mutex
	err     error
	opened  []*fakeTransport
	current *fakeTransport
}

func (o *fakeOpener) Open() (contracts.Transport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	t := &fakeTransport{}
	o.opened = append(o.opened, t)
	o.current = t
	return t, nil
}

func (o *fakeOpener) openedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

// openHandles counts transports opened and not yet closed.
func (o *fakeOpener) openHandles() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, t := range o.opened {
		t.mu.Lock()
		if !t.closed {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

func waitConnected(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State() == contracts.Connected
	}, time.Second, time.Millisecond)
}

func TestConnectIsIdempotent(t *testing.T) {
	opener := &fakeOpener{}
	s := New(opener, nopLogger{})
	defer s.Close()

	require.NoError(t, s.Connect())
	waitConnected(t, s)
	require.NoError(t, s.Connect())
	require.NoError(t, s.Connect())
	waitConnected(t, s)

	// However many times discovery re-ran, exactly one handle stays open.
	require.Eventually(t, func() bool {
		return opener.openedCount() == 3 && opener.openHandles() == 1
	}, time.Second, time.Millisecond)
}

func TestGetFailureForcesDisconnect(t *testing.T) {
	opener := &fakeOpener{}
	s := New(opener, nopLogger{})
	defer s.Close()

	require.NoError(t, s.Connect())
	waitConnected(t, s)

	opener.current.mu.Lock()
	opener.current.inErr = errors.New("pipe stall")
	opener.current.mu.Unlock()

	data, ok := s.SendGet(0x45, 0, 4)
	assert.False(t, ok)
	assert.Nil(t, data)
	// The transition is synchronous with the failing get, not deferred to
	// the next poll.
	assert.Equal(t, contracts.Disconnected, s.State())
	assert.Equal(t, 0, opener.openHandles())
}

func TestSetWhileDisconnectedIsSilentNoOp(t *testing.T) {
	opener := &fakeOpener{}
	s := New(opener, nopLogger{})
	defer s.Close()

	s.SendSet(0x44, 0, []byte{0, 0, 0, 0})

	data, ok := s.SendGet(0x45, 0, 4)
	assert.False(t, ok)
	assert.Nil(t, data)
	assert.Empty(t, opener.opened)
}

func TestDetachReleasesHandle(t *testing.T) {
	opener := &fakeOpener{}
	s := New(opener, nopLogger{})
	defer s.Close()

	require.NoError(t, s.Connect())
	waitConnected(t, s)

	s.Notify(EventDetach)
	require.Eventually(t, func() bool {
		return s.State() == contracts.Disconnected
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, opener.openHandles())

	_, ok := s.SendGet(0x45, 0, 4)
	assert.False(t, ok)
}

func TestRequestsExecuteInSubmissionOrder(t *testing.T) {
	opener := &fakeOpener{}
	s := New(opener, nopLogger{})
	defer s.Close()

	require.NoError(t, s.Connect())
	waitConnected(t, s)

	s.SendSet(0x44, 0, []byte{1})
	s.SendSet(0x48, 2, []byte{2})
	s.SendSet(0x46, 0, []byte{1})
	_, ok := s.SendGet(0x45, 0, 4)
	require.True(t, ok)

	got := opener.current.records()
	require.Len(t, got, 4)
	assert.Equal(t, transferRecord{out: true, req: 0x44}, got[0])
	assert.Equal(t, transferRecord{out: true, req: 0x48, value: 2}, got[1])
	assert.Equal(t, transferRecord{out: true, req: 0x46}, got[2])
	assert.Equal(t, transferRecord{req: 0x45}, got[3])
}

func TestExclusiveAccessSurfacesWithoutRetry(t *testing.T) {
	busy := errors.New("device claimed by another process")
	opener := &fakeOpener{err: busy}
	s := New(opener, nopLogger{})
	defer s.Close()

	require.NoError(t, s.Connect())
	require.Eventually(t, func() bool {
		return errors.Is(s.LastError(), busy)
	}, time.Second, time.Millisecond)
	assert.Equal(t, contracts.Disconnected, s.State())

	// Recovery needs an explicit reconnect.
	opener.mu.Lock()
	opener.err = nil
	opener.mu.Unlock()
	require.NoError(t, s.Connect())
	waitConnected(t, s)
	assert.NoError(t, s.LastError())
}

func TestStateChangesDelivered(t *testing.T) {
	opener := &fakeOpener{}
	s := New(opener, nopLogger{})
	defer s.Close()

	require.NoError(t, s.Connect())
	select {
	case st := <-s.StateChanges():
		assert.Equal(t, contracts.Connected, st)
	case <-time.After(time.Second):
		t.Fatal("no state transition delivered")
	}

	s.Notify(EventDetach)
	select {
	case st := <-s.StateChanges():
		assert.Equal(t, contracts.Disconnected, st)
	case <-time.After(time.Second):
		t.Fatal("no state transition delivered")
	}
}
