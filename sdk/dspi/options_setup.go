package dspi

import (
	"time"

	"github.com/WeebLabs/DSPi-Console/internal/logger"
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// Factory defaults. The vendor/product pair matches the DSP hardware's
// fixed identification; override with WithUSBConfig for prototypes
// enumerating under a different ID.
const (
	defaultVendorID        = 0x0483
	defaultProductID       = 0x5740
	defaultTransferTimeout = time.Second
	defaultSampleRate      = 48000.0
	defaultPollInterval    = 500 * time.Millisecond
	defaultReconnect       = 500 * time.Millisecond
)

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: An error if there was an issue applying the options.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Set defaults if options are not provided
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.USB == nil {
		options.USB = &contracts.USBConfig{
			VendorID:        defaultVendorID,
			ProductID:       defaultProductID,
			TransferTimeout: defaultTransferTimeout,
		}
	}
	if options.USB.TransferTimeout == 0 {
		options.USB.TransferTimeout = defaultTransferTimeout
	}
	if options.SampleRate == 0 {
		options.SampleRate = defaultSampleRate
	}
	if options.PollInterval == 0 {
		options.PollInterval = defaultPollInterval
	}
	if options.ReconnectInterval == 0 {
		options.ReconnectInterval = defaultReconnect
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options, nil
}
