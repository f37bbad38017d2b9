// Package console assembles the device session, the parameter store and the
// persistence relay into the one client handle the public SDK exposes. It
// also runs the two background cadences: the hot-plug rescan while
// disconnected and the periodic live-status poll while connected.
package console

import (
	"io"
	"sync"
	"time"

	"github.com/WeebLabs/DSPi-Console/internal/flash"
	"github.com/WeebLabs/DSPi-Console/internal/store"
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// Session is the slice of the device session the client drives.
type Session interface {
	contracts.Requester
	Connect() error
	Close() error
	State() contracts.ConnectionState
	StateChanges() <-chan contracts.ConnectionState
	LastError() error
}

// Client implements contracts.ClientDSP.
type Client struct {
	logger  contracts.Logger
	session Session
	store   *store.Store
	relay   *flash.Relay
	bus     io.Closer

	pollInterval      time.Duration
	reconnectInterval time.Duration

	stateCh   chan contracts.ConnectionState
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New wires the pieces together and starts the background loop. bus may be
// nil when the session owns no platform resources (tests).
func New(sess Session, st *store.Store, relay *flash.Relay, bus io.Closer, opts *contracts.ClientOptions) *Client {
	c := &Client{
		logger:            opts.Logger,
		session:           sess,
		store:             st,
		relay:             relay,
		bus:               bus,
		pollInterval:      opts.PollInterval,
		reconnectInterval: opts.ReconnectInterval,
		stateCh:           make(chan contracts.ConnectionState, 8),
		done:              make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// run owns the client-side cadences. Session state transitions drive the
// bulk fetch: every (re)connection resynchronizes the cache before consumers
// see the Connected state.
func (c *Client) run() {
	defer c.wg.Done()

	reconnect := time.NewTicker(c.reconnectInterval)
	defer reconnect.Stop()

	var poll <-chan time.Time
	if c.pollInterval > 0 {
		t := time.NewTicker(c.pollInterval)
		defer t.Stop()
		poll = t.C
	}

	for {
		select {
		case st := <-c.session.StateChanges():
			if st == contracts.Connected {
				if err := c.store.FetchAll(); err != nil {
					c.logger.Warn("bulk fetch after connect failed",
						c.logger.Field().Error("error", err))
				}
			}
			select {
			case c.stateCh <- st:
			default:
				c.logger.Warn("state channel full; dropping transition")
			}
		case <-reconnect.C:
			if c.session.State() == contracts.Disconnected {
				_ = c.session.Connect()
			}
		case <-poll:
			if c.session.State() == contracts.Connected {
				if err := c.store.PollStatus(); err != nil {
					c.logger.Debug("status poll failed",
						c.logger.Field().Error("error", err))
				}
			}
		case <-c.done:
			return
		}
	}
}

// Connect re-runs discovery, tearing down any existing handle first.
func (c *Client) Connect() error {
	return c.session.Connect()
}

// Close stops the background loop and releases the session and bus.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.wg.Wait()
	err := c.session.Close()
	if c.bus != nil {
		if berr := c.bus.Close(); err == nil {
			err = berr
		}
	}
	return err
}

func (c *Client) State() contracts.ConnectionState { return c.session.State() }

func (c *Client) StateChanges() <-chan contracts.ConnectionState { return c.stateCh }

func (c *Client) LastError() error { return c.session.LastError() }

func (c *Client) Snapshot() contracts.Snapshot { return c.store.Snapshot() }

func (c *Client) Changes() <-chan contracts.Change { return c.store.Changes() }

func (c *Client) FetchAll() error { return c.store.FetchAll() }

func (c *Client) PollStatus() error { return c.store.PollStatus() }

func (c *Client) ReadDebugCounter(selector uint16) (uint32, bool) {
	return c.store.ReadDebugCounter(selector)
}

func (c *Client) SetFilter(ch contracts.Channel, band int, p contracts.FilterParams) error {
	return c.store.SetFilter(ch, band, p)
}

func (c *Client) ClearChannelBands(ch contracts.Channel) error {
	return c.store.ClearChannelBands(ch)
}

func (c *Client) SetDelay(ch contracts.Channel, ms float64) error {
	return c.store.SetDelay(ch, ms)
}

func (c *Client) SetChannelGain(ch contracts.Channel, db float64) error {
	return c.store.SetChannelGain(ch, db)
}

func (c *Client) SetChannelMute(ch contracts.Channel, mute bool) error {
	return c.store.SetChannelMute(ch, mute)
}

func (c *Client) SetChannelVisible(ch contracts.Channel, visible bool) error {
	return c.store.SetChannelVisible(ch, visible)
}

func (c *Client) SetPreampGain(db float64) error { return c.store.SetPreampGain(db) }

func (c *Client) SetBypass(on bool) error { return c.store.SetBypass(on) }

func (c *Client) Save() contracts.FlashResult { return c.relay.Save() }

func (c *Client) Load() contracts.FlashResult { return c.relay.Load() }

func (c *Client) FactoryReset() contracts.FlashResult { return c.relay.FactoryReset() }

func (c *Client) ResponseDB(ch contracts.Channel, freq float64) float64 {
	return c.store.ResponseDB(ch, freq)
}

func (c *Client) ResponseCurve(ch contracts.Channel, points int, fmin, fmax float64) []contracts.ResponsePoint {
	return c.store.ResponseCurve(ch, points, fmin, fmax)
}
