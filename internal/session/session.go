// Package session owns the DSP connection state machine and the single
// serialized execution context every control transfer runs through. One
// goroutine owns the device handle; hot-plug events and requests are funneled
// into it, so no transfer can ever race a handle teardown.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// Opener opens a transport to the device when one is attached. The gousb bus
// implements it in production; tests substitute fakes.
type Opener interface {
	Open() (contracts.Transport, error)
}

// Event is a typed hot-plug notification posted into the session loop.
type Event int

const (
	// EventAttach reports a device arrival (or an explicit reconnect
	// request). Any existing handle is released before the new open.
	EventAttach Event = iota
	// EventDetach reports a device removal. The handle is released and
	// queued requests fail instead of touching it.
	EventDetach
)

type result struct {
	data []byte
	ok   bool
}

type request struct {
	out     bool
	req     uint8
	value   uint16
	payload []byte
	length  int
	gen     uint64
	reply   chan result
}

// Session is the device session. All transfers — set and get — execute on
// its loop goroutine in FIFO order; no two transfers are ever in flight
// concurrently.
type Session struct {
	logger contracts.Logger
	opener Opener

	requests chan request
	events   chan Event
	done     chan struct{}
	closed   chan struct{}

	closeOnce sync.Once

	state      atomic.Int32
	generation atomic.Uint64
	lastErr    atomic.Value // of errBox

	stateCh chan contracts.ConnectionState

	// transport is owned exclusively by the loop goroutine.
	transport contracts.Transport
}

type errBox struct{ err error }

const (
	requestQueueDepth = 64
	eventQueueDepth   = 8
	stateQueueDepth   = 8
)

// New creates a session and starts its execution loop. The session begins
// Disconnected; call Connect or post EventAttach to establish a link.
func New(opener Opener, logger contracts.Logger) *Session {
	s := &Session{
		logger:   logger,
		opener:   opener,
		requests: make(chan request, requestQueueDepth),
		events:   make(chan Event, eventQueueDepth),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
		stateCh:  make(chan contracts.ConnectionState, stateQueueDepth),
	}
	s.lastErr.Store(errBox{})
	go s.run()
	return s
}

// Connect tears down any existing handle and re-runs discovery. Idempotent:
// however often it is called, at most one handle is open afterwards. The
// transition to Connected happens asynchronously on the session loop; watch
// StateChanges or LastError for the outcome.
func (s *Session) Connect() error {
	s.Notify(EventAttach)
	return nil
}

// Notify posts a hot-plug event into the serialized loop. The platform
// watcher and tests use this; it never touches the handle directly.
func (s *Session) Notify(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Close shuts the session down, releasing the handle and failing any queued
// requests.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.closed
	return nil
}

// State returns the current connection state.
func (s *Session) State() contracts.ConnectionState {
	return contracts.ConnectionState(s.state.Load())
}

// StateChanges delivers connection-state transitions. Slow consumers may
// miss intermediate transitions but always observe the latest one eventually.
func (s *Session) StateChanges() <-chan contracts.ConnectionState {
	return s.stateCh
}

// LastError returns the most recent discovery/open failure, such as the
// device being claimed elsewhere. Nil after a successful open.
func (s *Session) LastError() error {
	return s.lastErr.Load().(errBox).err
}

// SendSet enqueues a fire-and-forget transfer. It never blocks beyond
// enqueueing and is a silent no-op while disconnected; the caller must not
// assume the device applied the value.
func (s *Session) SendSet(req uint8, value uint16, payload []byte) {
	r := request{
		out:     true,
		req:     req,
		value:   value,
		payload: payload,
		gen:     s.generation.Load(),
	}
	select {
	case s.requests <- r:
	case <-s.done:
	}
}

// SendGet blocks the caller until the transfer completes or fails. ok is
// false on any failure; a failure while the session believed itself
// connected forces the state machine to Disconnected before SendGet returns.
func (s *Session) SendGet(req uint8, value uint16, length int) ([]byte, bool) {
	r := request{
		req:    req,
		value:  value,
		length: length,
		gen:    s.generation.Load(),
		reply:  make(chan result, 1),
	}
	select {
	case s.requests <- r:
	case <-s.done:
		return nil, false
	}
	select {
	case res := <-r.reply:
		return res.data, res.ok
	case <-s.closed:
		return nil, false
	}
}

// run is the single execution context. Hot-plug events take priority over
// queued requests so a stalled transfer queue cannot delay a teardown past
// the transfer currently on the wire.
func (s *Session) run() {
	defer close(s.closed)
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
			continue
		default:
		}
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case req := <-s.requests:
			s.handleRequest(req)
		case <-s.done:
			s.teardown()
			return
		}
	}
}

func (s *Session) handleEvent(ev Event) {
	switch ev {
	case EventAttach:
		// Release the previous handle synchronously before the new match
		// is processed; two logical sessions must never hold the device.
		s.teardown()
		t, err := s.opener.Open()
		if err != nil {
			s.lastErr.Store(errBox{err})
			s.logger.Debug("DSP open failed",
				s.logger.Field().Error("error", err))
			return
		}
		s.lastErr.Store(errBox{})
		s.transport = t
		s.setState(contracts.Connected)
	case EventDetach:
		if s.transport != nil {
			s.logger.Info("DSP device detached")
		}
		s.teardown()
	}
}

func (s *Session) handleRequest(req request) {
	// A reconnect invalidates everything queued before it; a stale request
	// must fail rather than run against the newly established link.
	if req.gen != s.generation.Load() || s.transport == nil {
		if req.reply != nil {
			req.reply <- result{}
		}
		return
	}
	if req.out {
		if err := s.transport.ControlOut(req.req, req.value, req.payload); err != nil {
			s.logger.Warn("control write failed, treating device as gone",
				s.logger.Field().Uint8("request", req.req),
				s.logger.Field().Error("error", err))
			s.teardown()
		}
		return
	}
	data, err := s.transport.ControlIn(req.req, req.value, req.length)
	if err != nil {
		s.logger.Warn("control read failed, treating device as gone",
			s.logger.Field().Uint8("request", req.req),
			s.logger.Field().Error("error", err))
		s.teardown()
		req.reply <- result{}
		return
	}
	req.reply <- result{data: data, ok: true}
}

// teardown releases the handle and bumps the request generation so queued
// requests from the old link fail instead of executing.
func (s *Session) teardown() {
	s.generation.Add(1)
	if s.transport == nil {
		s.setState(contracts.Disconnected)
		return
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("error closing device handle",
			s.logger.Field().Error("error", err))
	}
	s.transport = nil
	s.setState(contracts.Disconnected)
}

func (s *Session) setState(next contracts.ConnectionState) {
	prev := contracts.ConnectionState(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	s.logger.Info("session state changed",
		s.logger.Field().String("state", next.String()))
	select {
	case s.stateCh <- next:
	default:
		s.logger.Warn("state channel full; dropping transition")
	}
}
