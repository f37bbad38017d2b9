package dspi

import (
	"github.com/WeebLabs/DSPi-Console/internal/console"
	"github.com/WeebLabs/DSPi-Console/internal/flash"
	"github.com/WeebLabs/DSPi-Console/internal/session"
	"github.com/WeebLabs/DSPi-Console/internal/store"
	"github.com/WeebLabs/DSPi-Console/internal/usb"
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// NewClient assembles a DSP client from finalized options: the USB bus for
// discovery and transfers, the session owning the serialized execution
// context, the parameter store mirror and the persistence relay.
//
// opts *contracts.ClientOptions: Finalized configuration for the client.
//
// Returns:
//   - contracts.ClientDSP: An instance of the DSP client.
//   - error: An error if initialization fails.
func NewClient(opts *contracts.ClientOptions) (contracts.ClientDSP, error) {
	bus := usb.NewBus(*opts.USB, opts.Logger)
	sess := session.New(bus, opts.Logger)
	st := store.New(sess, opts.Logger, opts.SampleRate)
	relay := flash.New(sess, sess, st, opts.Logger)

	opts.Logger.Info("DSP client successfully created")
	return console.New(sess, st, relay, bus, opts), nil
}
