package contracts

// ConnectionState describes the device session state machine.
type ConnectionState int

const (
	// Disconnected means no device handle is open. The session waits for the
	// next hot-plug arrival or an explicit Connect.
	Disconnected ConnectionState = iota
	// Connected means exactly one device handle is open and transfers may be
	// issued.
	Connected
)

// String returns the state name.
func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Transport issues one vendor control transfer against an open device handle.
// It carries no business logic; implementations wrap the platform USB stack.
type Transport interface {
	// ControlIn performs a device-to-host transfer and returns exactly
	// length bytes or an error.
	ControlIn(request uint8, value uint16, length int) ([]byte, error)
	// ControlOut performs a host-to-device transfer.
	ControlOut(request uint8, value uint16, payload []byte) error
	// Close releases the device handle.
	Close() error
}

// Requester submits control-transfer requests into the session's single
// serialized execution context. It is the only way the parameter store and
// the persistence relay may reach the device.
type Requester interface {
	// SendSet enqueues a fire-and-forget host-to-device transfer. While
	// disconnected it is a silent no-op; the caller must not assume the
	// device applied the value.
	SendSet(request uint8, value uint16, payload []byte)
	// SendGet blocks until the transfer completes or fails. ok is false on
	// any failure (no handle, device gone, transfer error); callers must
	// treat that as a session outcome change, not a transient error.
	SendGet(request uint8, value uint16, length int) (data []byte, ok bool)
}

// FlashResult is the one-byte result code of a persistence command.
type FlashResult uint8

const (
	// FlashOK means the command completed.
	FlashOK FlashResult = 0
	// FlashWriteError means the command failed or no device was connected.
	FlashWriteError FlashResult = 1
	// FlashNoData means no saved configuration exists; defaults remain.
	FlashNoData FlashResult = 2
	// FlashCRCError means the saved configuration failed its integrity check.
	FlashCRCError FlashResult = 3
)

// String returns the result name.
func (r FlashResult) String() string {
	switch r {
	case FlashOK:
		return "ok"
	case FlashWriteError:
		return "write-error"
	case FlashNoData:
		return "no-data"
	case FlashCRCError:
		return "crc-error"
	}
	return "unknown"
}

// ChangeKind identifies which part of the parameter store mutated.
type ChangeKind int

const (
	ChangeFilter ChangeKind = iota
	ChangeDelay
	ChangeChannelGain
	ChangeChannelMute
	ChangeVisibility
	ChangePreamp
	ChangeBypass
	ChangeStatus
	// ChangeBulk signals a full resynchronization after fetch-all.
	ChangeBulk
)

// Change is one entry on the store's change-notification channel. Channel and
// Band are meaningful for the per-channel kinds only.
type Change struct {
	Kind    ChangeKind
	Channel Channel
	Band    int
}

// Snapshot is an immutable copy of the full parameter store state. Revision
// increases on every real mutation; a fetch that decodes to a value already
// cached does not advance it.
type Snapshot struct {
	Channels [NumChannels]ChannelState
	Global   GlobalState
	Status   SystemStatus
	Revision uint64
}

// ResponsePoint is one sample of an evaluated frequency-response curve.
type ResponsePoint struct {
	Frequency float64 // Hz
	Magnitude float64 // dB
}

// ClientDSP is the public face of the control plane: the device session, the
// parameter store mirror and the persistence commands behind one handle.
type ClientDSP interface {
	// Connect (re)establishes discovery. It is idempotent: any existing
	// handle is torn down first, so at most one handle is ever open.
	Connect() error
	// Close terminates the session and releases all resources.
	Close() error

	// State returns the current connection state.
	State() ConnectionState
	// StateChanges delivers connection-state transitions.
	StateChanges() <-chan ConnectionState
	// LastError returns the most recent discovery/open failure, such as the
	// device being claimed by another process. Cleared on successful open.
	LastError() error

	// Snapshot returns an immutable copy of the cached device state.
	Snapshot() Snapshot
	// Changes delivers typed notifications for every real cache mutation.
	Changes() <-chan Change

	// FetchAll bulk-reads the full device state into the cache. It fails
	// fast: if the first read is absent the cache is left untouched.
	FetchAll() error
	// PollStatus reads the consolidated live-status block and replaces the
	// cached SystemStatus wholesale.
	PollStatus() error
	// ReadDebugCounter reads one of the device's buffer-health counters
	// (selectors 3 through 8).
	ReadDebugCounter(selector uint16) (uint32, bool)

	SetFilter(ch Channel, band int, p FilterParams) error
	ClearChannelBands(ch Channel) error
	SetDelay(ch Channel, ms float64) error
	SetChannelGain(ch Channel, db float64) error
	SetChannelMute(ch Channel, mute bool) error
	SetChannelVisible(ch Channel, visible bool) error
	SetPreampGain(db float64) error
	SetBypass(on bool) error

	// Save persists the current device configuration to flash.
	Save() FlashResult
	// Load restores the flash configuration; on success the cache is
	// resynchronized with one FetchAll.
	Load() FlashResult
	// FactoryReset restores factory defaults; on success the cache is
	// resynchronized with one FetchAll.
	FactoryReset() FlashResult

	// ResponseDB evaluates the channel's cascaded frequency response at one
	// frequency, honoring the master bypass override for input channels.
	ResponseDB(ch Channel, freq float64) float64
	// ResponseCurve samples the response on a log-spaced grid.
	ResponseCurve(ch Channel, points int, fmin, fmax float64) []ResponsePoint
}
