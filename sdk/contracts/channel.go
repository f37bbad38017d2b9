package contracts

// Channel identifies one of the five fixed audio paths of the processor:
// two input channels followed by three output channels. Band count and
// capability set are derived from the channel index and never stored.
type Channel int

const (
	// ChannelInputA is the first input channel (10 filter bands).
	ChannelInputA Channel = iota
	// ChannelInputB is the second input channel (10 filter bands).
	ChannelInputB
	// ChannelOutput1 is the first output channel (2 bands, delay/gain/mute).
	ChannelOutput1
	// ChannelOutput2 is the second output channel (2 bands, delay/gain/mute).
	ChannelOutput2
	// ChannelOutput3 is the third output channel (2 bands, delay/gain/mute).
	ChannelOutput3
)

// NumChannels is the number of audio paths managed by the processor.
const NumChannels = 5

const (
	inputBands  = 10
	outputBands = 2
)

// IsInput reports whether the channel is one of the two input paths.
func (c Channel) IsInput() bool {
	return c == ChannelInputA || c == ChannelInputB
}

// Valid reports whether the channel index addresses a real audio path.
func (c Channel) Valid() bool {
	return c >= ChannelInputA && c < NumChannels
}

// Bands returns the number of configurable filter slots for the channel.
func (c Channel) Bands() int {
	if c.IsInput() {
		return inputBands
	}
	return outputBands
}

// HasDelay reports whether the channel carries delay, output gain and mute.
// Only output channels do.
func (c Channel) HasDelay() bool {
	return c.Valid() && !c.IsInput()
}

// FilterType enumerates the second-order filter shapes the device implements.
type FilterType uint8

const (
	// FilterOff disables the band; it contributes unity gain regardless of
	// the remaining parameters.
	FilterOff FilterType = iota
	// FilterPeaking is a peaking EQ band (uses frequency, Q and gain).
	FilterPeaking
	// FilterLowShelf is a low shelf band (uses frequency and gain).
	FilterLowShelf
	// FilterHighShelf is a high shelf band (uses frequency and gain).
	FilterHighShelf
	// FilterLowPass is a two-pole low-pass band (uses frequency).
	FilterLowPass
	// FilterHighPass is a two-pole high-pass band (uses frequency).
	FilterHighPass
)

// String returns a short human-readable name for the filter type.
func (t FilterType) String() string {
	switch t {
	case FilterOff:
		return "off"
	case FilterPeaking:
		return "peaking"
	case FilterLowShelf:
		return "low-shelf"
	case FilterHighShelf:
		return "high-shelf"
	case FilterLowPass:
		return "low-pass"
	case FilterHighPass:
		return "high-pass"
	}
	return "unknown"
}

// FilterParams describes one filter band.
type FilterParams struct {
	Type      FilterType
	Frequency float64 // center/corner frequency in Hz, > 0
	Q         float64 // quality factor, > 0; meaningful for peaking only
	Gain      float64 // boost/cut in dB; meaningful for peaking and shelves
}

// DefaultFilter returns the band state the device assumes at session start:
// disabled, 1 kHz, Q 0.707, 0 dB.
func DefaultFilter() FilterParams {
	return FilterParams{Type: FilterOff, Frequency: 1000, Q: 0.707, Gain: 0}
}

// ChannelState aggregates everything configurable on one channel. DelayMS,
// GainDB and Mute are meaningful for output channels only. Visible is a
// display hint kept host-side; it is never sent to the device.
type ChannelState struct {
	Filters []FilterParams
	DelayMS float64
	GainDB  float64
	Mute    bool
	Visible bool
}

// GlobalState holds device-wide settings.
type GlobalState struct {
	PreampDB float64 // global preamp gain in dB, -60..+10
	Bypass   bool    // master bypass; affects the two input channels only
}

// SystemStatus is the live status snapshot: one normalized peak level per
// physical channel and the load of both DSP cores in percent. It is replaced
// wholesale on every poll, never merged field by field.
type SystemStatus struct {
	Peaks [NumChannels]float64 // 0.0..1.0
	Load  [2]uint8             // percent
}

// Limits the device enforces on writable scalar fields. Host-side setters
// clamp to these before transmitting.
const (
	MinPreampDB = -60.0
	MaxPreampDB = 10.0
	MinDelayMS  = 0.0
	MaxDelayMS  = 170.0
)
