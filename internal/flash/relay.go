// Package flash relays the device's three opaque persistence commands. Each
// command returns a one-byte result code; the host never sees the flash
// contents themselves.
package flash

import (
	"github.com/WeebLabs/DSPi-Console/internal/protocol"
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// Resyncer restores the parameter cache after the device silently replaced
// its own state. The parameter store implements it.
type Resyncer interface {
	FetchAll() error
}

// StateReader reports the session connection state; commands issued while
// disconnected fail without attempting a transfer.
type StateReader interface {
	State() contracts.ConnectionState
}

// Relay issues persistence commands through the session and resynchronizes
// the parameter store when the device state changed underneath it.
type Relay struct {
	req    contracts.Requester
	state  StateReader
	store  Resyncer
	logger contracts.Logger
}

// New creates a relay.
func New(req contracts.Requester, state StateReader, store Resyncer, logger contracts.Logger) *Relay {
	return &Relay{req: req, state: state, store: store, logger: logger}
}

// Save persists the current configuration to device flash. The cache already
// mirrors the device, so no resynchronization follows.
func (r *Relay) Save() contracts.FlashResult {
	return r.command(protocol.ReqFlashSave, false)
}

// Load restores the configuration saved in flash. On success the device has
// silently replaced values the cache does not know about, so exactly one
// full fetch follows.
func (r *Relay) Load() contracts.FlashResult {
	return r.command(protocol.ReqFlashLoad, true)
}

// FactoryReset restores factory defaults, then resynchronizes like Load.
func (r *Relay) FactoryReset() contracts.FlashResult {
	return r.command(protocol.ReqFactoryReset, true)
}

func (r *Relay) command(opcode uint8, resync bool) contracts.FlashResult {
	if r.state.State() != contracts.Connected {
		return contracts.FlashWriteError
	}

	data, ok := r.req.SendGet(opcode, 0, 1)
	if !ok {
		return contracts.FlashWriteError
	}
	result := protocol.DecodeFlashResult(data)
	r.logger.Info("persistence command finished",
		r.logger.Field().Uint8("opcode", opcode),
		r.logger.Field().String("result", result.String()))

	if result == contracts.FlashOK && resync {
		if err := r.store.FetchAll(); err != nil {
			r.logger.Warn("resynchronization after flash command failed",
				r.logger.Field().Error("error", err))
		}
	}
	return result
}
