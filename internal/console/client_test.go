package console

import (
	"sync"
	"testing"
	"time"

	"github.com/WeebLabs/DSPi-Console/internal/flash"
	"github.com/WeebLabs/DSPi-Console/internal/store"
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

// fakeSession satisfies the Session slice with a scriptable connection state.
// Reads answer with zero bytes, which decode to neutral values and a FlashOK
// result.
type fakeSession struct {
	mu      sync.Mutex
	state   contracts.ConnectionState
	stateCh chan contracts.ConnectionState
	gets    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{stateCh: make(chan contracts.ConnectionState, 8)}
}

func (s *fakeSession) SendSet(uint8, uint16, []byte) {}

func (s *fakeSession) SendGet(_ uint8, _ uint16, length int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.state != contracts.Connected {
		return nil, false
	}
	return make([]byte, length), true
}

func (s *fakeSession) Connect() error {
	s.setState(contracts.Connected)
	return nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) State() contracts.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) StateChanges() <-chan contracts.ConnectionState { return s.stateCh }

func (s *fakeSession) LastError() error { return nil }

func (s *fakeSession) setState(st contracts.ConnectionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.stateCh <- st
}

func (s *fakeSession) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func newTestClient(sess *fakeSession) *Client {
	opts := &contracts.ClientOptions{
		Logger:            nopLogger{},
		SampleRate:        48000,
		PollInterval:      time.Hour,
		ReconnectInterval: time.Hour,
	}
	st := store.New(sess, opts.Logger, opts.SampleRate)
	relay := flash.New(sess, sess, st, opts.Logger)
	return New(sess, st, relay, nil, opts)
}

func TestConnectTriggersBulkFetch(t *testing.T) {
	sess := newFakeSession()
	c := newTestClient(sess)
	defer c.Close()

	require.NoError(t, c.Connect())

	select {
	case st := <-c.StateChanges():
		assert.Equal(t, contracts.Connected, st)
	case <-time.After(time.Second):
		t.Fatal("no state transition forwarded")
	}
	// The forwarded transition comes after the bulk fetch, so the cache has
	// already been walked field by field.
	assert.Greater(t, sess.getCount(), 100)
}

func TestLoadResyncsThroughFacade(t *testing.T) {
	sess := newFakeSession()
	c := newTestClient(sess)
	defer c.Close()

	require.NoError(t, c.Connect())
	select {
	case <-c.StateChanges():
	case <-time.After(time.Second):
		t.Fatal("no state transition forwarded")
	}

	before := sess.getCount()
	assert.Equal(t, contracts.FlashOK, c.Load())
	// One command transfer plus the full resynchronization walk.
	assert.Greater(t, sess.getCount(), before+1)
}

func TestBypassOverridePinsInputChannelsFlat(t *testing.T) {
	sess := newFakeSession()
	c := newTestClient(sess)
	defer c.Close()

	boost := contracts.FilterParams{
		Type:      contracts.FilterPeaking,
		Frequency: 1000,
		Q:         0.707,
		Gain:      9,
	}
	require.NoError(t, c.SetFilter(contracts.ChannelInputA, 0, boost))
	require.NoError(t, c.SetFilter(contracts.ChannelOutput1, 0, boost))

	assert.InDelta(t, 9.0, c.ResponseDB(contracts.ChannelInputA, 1000), 1e-6)

	require.NoError(t, c.SetBypass(true))
	// Bypass pins input channels to exactly 0 dB whatever their bands hold;
	// output channels are unaffected.
	assert.Equal(t, 0.0, c.ResponseDB(contracts.ChannelInputA, 1000))
	assert.InDelta(t, 9.0, c.ResponseDB(contracts.ChannelOutput1, 1000), 1e-6)
}

func TestResponseCurveSpansRequestedRange(t *testing.T) {
	sess := newFakeSession()
	c := newTestClient(sess)
	defer c.Close()

	curve := c.ResponseCurve(contracts.ChannelInputA, 32, 20, 20000)
	require.Len(t, curve, 32)
	assert.InDelta(t, 20, curve[0].Frequency, 1e-9)
	assert.InDelta(t, 20000, curve[31].Frequency, 1e-6)
	for _, pt := range curve {
		assert.Equal(t, 0.0, pt.Magnitude)
	}
}
