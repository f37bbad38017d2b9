// Package store holds the canonical in-memory mirror of the device state:
// every channel's filters, delay, gain and mute, the global preamp and
// bypass, and the live status block. Writes are optimistic (cache first,
// then one fire-and-forget transfer); reads from the device reconcile
// against the cache so indistinguishable values do not churn consumers.
package store

import (
	"errors"
	"math"
	"sync"

	"github.com/WeebLabs/DSPi-Console/internal/protocol"
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

var (
	// ErrDisconnected means a device read came back absent; the cache keeps
	// its last-known values, matching a device that vanished mid-session.
	ErrDisconnected = errors.New("device disconnected")
	// ErrInvalidChannel flags a channel index outside the fixed enumeration.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrInvalidBand flags a band index beyond the channel's band count.
	ErrInvalidBand = errors.New("invalid band")
	// ErrNotOutputChannel flags delay/gain/mute access on an input channel.
	ErrNotOutputChannel = errors.New("channel has no delay/gain/mute")
	// ErrInvalidParams flags a filter record violating frequency/Q bounds.
	ErrInvalidParams = errors.New("invalid filter parameters")
)

// Reconciliation thresholds. A fetched value closer to the cache than this
// is considered the same value after float32 wire rounding and is dropped.
const (
	delayEpsilon  = 0.01 // ms
	preampEpsilon = 0.1  // dB
)

const changeQueueDepth = 64

// Store is the parameter mirror. It never touches the device handle; every
// transfer goes through the session's Requester contract.
type Store struct {
	req    contracts.Requester
	logger contracts.Logger

	sampleRate float64

	mu       sync.RWMutex
	channels [contracts.NumChannels]contracts.ChannelState
	global   contracts.GlobalState
	status   contracts.SystemStatus
	revision uint64

	changes chan contracts.Change
}

// New creates a store with every band of every channel at its default
// off-filter state.
func New(req contracts.Requester, logger contracts.Logger, sampleRate float64) *Store {
	s := &Store{
		req:        req,
		logger:     logger,
		sampleRate: sampleRate,
		changes:    make(chan contracts.Change, changeQueueDepth),
	}
	for ch := contracts.Channel(0); ch < contracts.NumChannels; ch++ {
		filters := make([]contracts.FilterParams, ch.Bands())
		for i := range filters {
			filters[i] = contracts.DefaultFilter()
		}
		s.channels[ch] = contracts.ChannelState{Filters: filters, Visible: true}
	}
	return s
}

// Snapshot returns an immutable copy of the cached state.
func (s *Store) Snapshot() contracts.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := contracts.Snapshot{
		Global:   s.global,
		Status:   s.status,
		Revision: s.revision,
	}
	for i, ch := range s.channels {
		filters := make([]contracts.FilterParams, len(ch.Filters))
		copy(filters, ch.Filters)
		ch.Filters = filters
		snap.Channels[i] = ch
	}
	return snap
}

// Revision returns the current cache version token. It advances only on real
// mutations; a reconciled fetch that decodes to a cached value leaves it.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Changes delivers one notification per real cache mutation. Slow consumers
// drop notifications rather than stalling the store.
func (s *Store) Changes() <-chan contracts.Change {
	return s.changes
}

func (s *Store) notify(c contracts.Change) {
	select {
	case s.changes <- c:
	default:
		s.logger.Warn("change channel full; dropping notification")
	}
}

// FetchAll bulk-reads the full device state: preamp, bypass, every band of
// every channel, then delay, gain and mute of the output channels. It fails
// fast: if the very first read is absent the device is gone and the whole
// cache is left untouched; a failure later on aborts the remaining reads the
// same way, keeping what was already merged.
func (s *Store) FetchAll() error {
	if err := s.fetchPreamp(); err != nil {
		return err
	}
	if err := s.fetchBypass(); err != nil {
		return err
	}
	for ch := contracts.Channel(0); ch < contracts.NumChannels; ch++ {
		for band := 0; band < ch.Bands(); band++ {
			if err := s.fetchFilter(ch, band); err != nil {
				return err
			}
		}
	}
	for ch := contracts.ChannelOutput1; ch < contracts.NumChannels; ch++ {
		if err := s.fetchOutputFields(ch); err != nil {
			return err
		}
	}
	s.notify(contracts.Change{Kind: contracts.ChangeBulk})
	return nil
}

func (s *Store) getF32(request uint8, value uint16) (float64, error) {
	data, ok := s.req.SendGet(request, value, protocol.FieldLen)
	if !ok {
		return 0, ErrDisconnected
	}
	v, err := protocol.DecodeF32(data)
	if err != nil {
		return 0, ErrDisconnected
	}
	return v, nil
}

func (s *Store) getBool(request uint8, value uint16) (bool, error) {
	data, ok := s.req.SendGet(request, value, 1)
	if !ok {
		return false, ErrDisconnected
	}
	v, err := protocol.DecodeBool(data)
	if err != nil {
		return false, ErrDisconnected
	}
	return v, nil
}

func (s *Store) fetchPreamp() error {
	v, err := s.getF32(protocol.ReqGetPreamp, 0)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.Abs(v-s.global.PreampDB) >= preampEpsilon {
		s.global.PreampDB = v
		s.revision++
	}
	return nil
}

func (s *Store) fetchBypass() error {
	v, err := s.getBool(protocol.ReqGetBypass, 0)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v != s.global.Bypass {
		s.global.Bypass = v
		s.revision++
	}
	return nil
}

// fetchFilter reads one band field by field; the device exposes no whole
// record read, only the four addressed scalars.
func (s *Store) fetchFilter(ch contracts.Channel, band int) error {
	data, ok := s.req.SendGet(protocol.ReqGetFilter,
		protocol.FilterAddress(ch, band, protocol.ParamType), protocol.FieldLen)
	if !ok {
		return ErrDisconnected
	}
	rawType, err := protocol.DecodeU32(data)
	if err != nil {
		return ErrDisconnected
	}
	freq, err := s.getF32(protocol.ReqGetFilter, protocol.FilterAddress(ch, band, protocol.ParamFrequency))
	if err != nil {
		return err
	}
	q, err := s.getF32(protocol.ReqGetFilter, protocol.FilterAddress(ch, band, protocol.ParamQ))
	if err != nil {
		return err
	}
	gain, err := s.getF32(protocol.ReqGetFilter, protocol.FilterAddress(ch, band, protocol.ParamGain))
	if err != nil {
		return err
	}

	ftype := contracts.FilterType(rawType)
	if ftype > contracts.FilterHighPass {
		s.logger.Warn("device reported unknown filter type",
			s.logger.Field().Uint64("type", uint64(rawType)))
		ftype = contracts.FilterOff
	}
	fetched := contracts.FilterParams{Type: ftype, Frequency: freq, Q: q, Gain: gain}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels[ch].Filters[band] != fetched {
		s.channels[ch].Filters[band] = fetched
		s.revision++
	}
	return nil
}

func (s *Store) fetchOutputFields(ch contracts.Channel) error {
	delay, err := s.getF32(protocol.ReqGetDelay, uint16(ch))
	if err != nil {
		return err
	}
	gain, err := s.getF32(protocol.ReqGetChannelGain, uint16(ch))
	if err != nil {
		return err
	}
	mute, err := s.getBool(protocol.ReqGetChannelMute, uint16(ch))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.channels[ch]
	if math.Abs(delay-st.DelayMS) >= delayEpsilon {
		st.DelayMS = delay
		s.revision++
	}
	if gain != st.GainDB {
		st.GainDB = gain
		s.revision++
	}
	if mute != st.Mute {
		st.Mute = mute
		s.revision++
	}
	return nil
}

// SetFilter applies one band optimistically: the cache changes first and is
// authoritative for consumers until the next explicit fetch; the upload is
// fire-and-forget with no read-back verification.
func (s *Store) SetFilter(ch contracts.Channel, band int, p contracts.FilterParams) error {
	if !ch.Valid() {
		return ErrInvalidChannel
	}
	if band < 0 || band >= ch.Bands() {
		return ErrInvalidBand
	}
	if p.Frequency <= 0 || p.Q <= 0 {
		return ErrInvalidParams
	}

	s.mu.Lock()
	s.channels[ch].Filters[band] = p
	s.revision++
	s.mu.Unlock()
	s.notify(contracts.Change{Kind: contracts.ChangeFilter, Channel: ch, Band: band})

	s.req.SendSet(protocol.ReqSetFilter, 0, protocol.EncodeFilterRecord(ch, band, p))
	return nil
}

// ClearChannelBands forces every band of the channel back to the default
// off-filter.
func (s *Store) ClearChannelBands(ch contracts.Channel) error {
	if !ch.Valid() {
		return ErrInvalidChannel
	}
	for band := 0; band < ch.Bands(); band++ {
		if err := s.SetFilter(ch, band, contracts.DefaultFilter()); err != nil {
			return err
		}
	}
	return nil
}

// SetDelay sets the output delay in milliseconds, clamped to the device
// range.
func (s *Store) SetDelay(ch contracts.Channel, ms float64) error {
	if !ch.Valid() {
		return ErrInvalidChannel
	}
	if !ch.HasDelay() {
		return ErrNotOutputChannel
	}
	ms = clamp(ms, contracts.MinDelayMS, contracts.MaxDelayMS)

	s.mu.Lock()
	s.channels[ch].DelayMS = ms
	s.revision++
	s.mu.Unlock()
	s.notify(contracts.Change{Kind: contracts.ChangeDelay, Channel: ch})

	s.req.SendSet(protocol.ReqSetDelay, uint16(ch), protocol.EncodeF32(ms))
	return nil
}

// SetChannelGain sets the output gain of one channel in dB.
func (s *Store) SetChannelGain(ch contracts.Channel, db float64) error {
	if !ch.Valid() {
		return ErrInvalidChannel
	}
	if !ch.HasDelay() {
		return ErrNotOutputChannel
	}

	s.mu.Lock()
	s.channels[ch].GainDB = db
	s.revision++
	s.mu.Unlock()
	s.notify(contracts.Change{Kind: contracts.ChangeChannelGain, Channel: ch})

	s.req.SendSet(protocol.ReqSetChannelGain, uint16(ch), protocol.EncodeF32(db))
	return nil
}

// SetChannelMute mutes or unmutes one output channel.
func (s *Store) SetChannelMute(ch contracts.Channel, mute bool) error {
	if !ch.Valid() {
		return ErrInvalidChannel
	}
	if !ch.HasDelay() {
		return ErrNotOutputChannel
	}

	s.mu.Lock()
	s.channels[ch].Mute = mute
	s.revision++
	s.mu.Unlock()
	s.notify(contracts.Change{Kind: contracts.ChangeChannelMute, Channel: ch})

	s.req.SendSet(protocol.ReqSetChannelMute, uint16(ch), protocol.EncodeBool(mute))
	return nil
}

// SetChannelVisible toggles the display flag. Host-side only; nothing is
// transmitted.
func (s *Store) SetChannelVisible(ch contracts.Channel, visible bool) error {
	if !ch.Valid() {
		return ErrInvalidChannel
	}
	s.mu.Lock()
	s.channels[ch].Visible = visible
	s.revision++
	s.mu.Unlock()
	s.notify(contracts.Change{Kind: contracts.ChangeVisibility, Channel: ch})
	return nil
}

// SetPreampGain sets the global preamp gain in dB, clamped to the device
// range.
func (s *Store) SetPreampGain(db float64) error {
	db = clamp(db, contracts.MinPreampDB, contracts.MaxPreampDB)

	s.mu.Lock()
	s.global.PreampDB = db
	s.revision++
	s.mu.Unlock()
	s.notify(contracts.Change{Kind: contracts.ChangePreamp})

	s.req.SendSet(protocol.ReqSetPreamp, 0, protocol.EncodeF32(db))
	return nil
}

// SetBypass toggles the master bypass affecting the input channels'
// effective response.
func (s *Store) SetBypass(on bool) error {
	s.mu.Lock()
	s.global.Bypass = on
	s.revision++
	s.mu.Unlock()
	s.notify(contracts.Change{Kind: contracts.ChangeBypass})

	s.req.SendSet(protocol.ReqSetBypass, 0, protocol.EncodeBool(on))
	return nil
}

// PollStatus issues the one consolidated status read and replaces the cached
// SystemStatus wholesale, guaranteeing a synchronized snapshot instead of
// seven reads that could straddle device-side updates.
func (s *Store) PollStatus() error {
	data, ok := s.req.SendGet(protocol.ReqGetStatus, protocol.SelStatusAll, protocol.StatusBlockLen)
	if !ok {
		return ErrDisconnected
	}
	st, err := protocol.DecodeStatus(data)
	if err != nil {
		return ErrDisconnected
	}

	s.mu.Lock()
	s.status = st
	s.revision++
	s.mu.Unlock()
	s.notify(contracts.Change{Kind: contracts.ChangeStatus})
	return nil
}

// ReadDebugCounter reads one buffer overrun/underrun counter (selectors 3
// through 8). These are on-demand diagnostics, not part of the poll cycle.
func (s *Store) ReadDebugCounter(selector uint16) (uint32, bool) {
	if selector < protocol.SelDebugFirst || selector > protocol.SelDebugLast {
		return 0, false
	}
	data, ok := s.req.SendGet(protocol.ReqGetStatus, selector, protocol.FieldLen)
	if !ok {
		return 0, false
	}
	v, err := protocol.DecodeU32(data)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
