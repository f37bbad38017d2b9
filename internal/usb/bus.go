// Package usb wraps the gousb stack into the transport primitive the device
// session runs on: discovery of the DSP by vendor/product ID and single
// vendor control transfers against the opened handle.
package usb

import (
	"errors"
	"fmt"

	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
	"github.com/google/gousb"
)

var (
	// ErrNoDevice means no device matching the configured vendor/product
	// pair is currently attached.
	ErrNoDevice = errors.New("dsp device not found")
	// ErrDeviceBusy means the device is attached but claimed by another
	// process; the caller must retry explicitly, there is no auto-retry.
	ErrDeviceBusy = errors.New("dsp device claimed by another process")
)

// Bus discovers and opens the DSP over a shared gousb context. One Bus
// outlives every handle it opens; handles themselves live exactly as long as
// the session's connected state.
type Bus struct {
	ctx    *gousb.Context
	cfg    contracts.USBConfig
	logger contracts.Logger
}

// NewBus creates a Bus for the given discovery configuration.
func NewBus(cfg contracts.USBConfig, logger contracts.Logger) *Bus {
	return &Bus{
		ctx:    gousb.NewContext(),
		cfg:    cfg,
		logger: logger,
	}
}

// Open scans for the configured vendor/product pair and opens the first
// match. Exclusive-access failures surface as ErrDeviceBusy; an empty scan
// as ErrNoDevice.
func (b *Bus) Open() (contracts.Transport, error) {
	vid, pid := gousb.ID(b.cfg.VendorID), gousb.ID(b.cfg.ProductID)
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vid && desc.Product == pid
	})
	// OpenDevices may return matches alongside an error for unrelated
	// devices on the bus; only fail when nothing usable came back.
	if len(devs) == 0 {
		if err != nil {
			if errors.Is(err, gousb.ErrorBusy) || errors.Is(err, gousb.ErrorAccess) {
				return nil, fmt.Errorf("%w: %v", ErrDeviceBusy, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		return nil, ErrNoDevice
	}
	for _, extra := range devs[1:] {
		extra.Close()
	}

	dev := devs[0]
	if b.cfg.TransferTimeout > 0 {
		dev.ControlTimeout = b.cfg.TransferTimeout
	}
	if product, perr := dev.Product(); perr == nil {
		b.logger.Info("DSP device opened",
			b.logger.Field().String("product", product))
	}
	return &transport{dev: dev}, nil
}

// Close releases the underlying USB context. Open handles must be closed
// first.
func (b *Bus) Close() error {
	return b.ctx.Close()
}

// transport issues vendor control transfers against one open device handle.
type transport struct {
	dev *gousb.Device
}

const (
	reqTypeIn  = gousb.ControlIn | gousb.ControlVendor | gousb.ControlDevice
	reqTypeOut = gousb.ControlOut | gousb.ControlVendor | gousb.ControlDevice
)

func (t *transport) ControlIn(request uint8, value uint16, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := t.dev.Control(reqTypeIn, request, value, 0, buf)
	if err != nil {
		return nil, err
	}
	if n != length {
		return nil, fmt.Errorf("short control read: got %d bytes, want %d", n, length)
	}
	return buf, nil
}

func (t *transport) ControlOut(request uint8, value uint16, payload []byte) error {
	_, err := t.dev.Control(reqTypeOut, request, value, 0, payload)
	return err
}

func (t *transport) Close() error {
	return t.dev.Close()
}
