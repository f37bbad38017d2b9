package contracts

import "time"

// USBConfig holds the discovery match and transfer bounds for the device link.
type USBConfig struct {
	VendorID  uint16 // Vendor ID the discovery scan matches on.
	ProductID uint16 // Product ID the discovery scan matches on.
	// TransferTimeout bounds every control transfer; a timeout surfaces as
	// an absent result, never as a hang.
	TransferTimeout time.Duration
}

// ClientOptions defines the configuration options for the DSP client.
type ClientOptions struct {
	Logger            Logger        // Logger for events and errors.
	LogLevel          LogLevel      // Level of logging to use.
	USB               *USBConfig    // USB discovery and transfer configuration.
	SampleRate        float64       // Sample rate the device runs at, in Hz.
	PollInterval      time.Duration // Period of the live-status poll.
	ReconnectInterval time.Duration // Period of the hot-plug rescan while disconnected.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the DSP client.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the DSP client.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithUSBConfig sets the USB discovery and transfer configuration.
func WithUSBConfig(config USBConfig) Option {
	return func(opts *ClientOptions) {
		opts.USB = &config
	}
}

// WithSampleRate sets the sample rate used for response evaluation. It must
// match the rate the device firmware runs its filters at.
func WithSampleRate(rate float64) Option {
	return func(opts *ClientOptions) {
		opts.SampleRate = rate
	}
}

// WithPollInterval sets the period of the live-status poll.
func WithPollInterval(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.PollInterval = d
	}
}

// WithReconnectInterval sets the period of the hot-plug rescan.
func WithReconnectInterval(d time.Duration) Option {
	return func(opts *ClientOptions) {
		opts.ReconnectInterval = d
	}
}
