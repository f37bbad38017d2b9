// Package protocol encodes and decodes the vendor control-transfer requests
// the DSP firmware understands. All multi-byte values are little-endian.
package protocol

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// Vendor request opcodes.
const (
	ReqSetFilter      uint8 = 0x42 // full filter record upload
	ReqGetFilter      uint8 = 0x43 // one filter field per read
	ReqSetPreamp      uint8 = 0x44
	ReqGetPreamp      uint8 = 0x45
	ReqSetBypass      uint8 = 0x46
	ReqGetBypass      uint8 = 0x47
	ReqSetDelay       uint8 = 0x48
	ReqGetDelay       uint8 = 0x49
	ReqGetStatus      uint8 = 0x50
	ReqFlashSave      uint8 = 0x51
	ReqFlashLoad      uint8 = 0x52
	ReqFactoryReset   uint8 = 0x53
	ReqSetChannelGain uint8 = 0x54
	ReqGetChannelGain uint8 = 0x55
	ReqSetChannelMute uint8 = 0x56
	ReqGetChannelMute uint8 = 0x57
)

// Filter field selectors for ReqGetFilter addressing.
const (
	ParamType      = 0
	ParamFrequency = 1
	ParamQ         = 2
	ParamGain      = 3
)

// Status selectors for ReqGetStatus. SelStatusAll returns the consolidated
// 12-byte block; selectors 3 through 8 return one u32 buffer-health counter
// each.
const (
	SelStatusAll  uint16 = 9
	SelDebugFirst uint16 = 3
	SelDebugLast  uint16 = 8
)

// Fixed payload sizes.
const (
	StatusBlockLen  = 12
	FieldLen        = 4
	FilterRecordLen = 16
)

var (
	// ErrShortPayload is returned when a device response is shorter than the
	// field being decoded.
	ErrShortPayload = errors.New("response payload too short")
	// ErrBadSelector is returned for a debug-counter selector outside 3..8.
	ErrBadSelector = errors.New("debug counter selector out of range")
)

// FilterAddress packs channel, band and field selector into the 16-bit
// addressing word of a filter read: channel<<8 | band<<4 | param.
func FilterAddress(ch contracts.Channel, band, param int) uint16 {
	return uint16(ch)<<8 | uint16(band)<<4 | uint16(param)
}

// EncodeFilterRecord builds the 16-byte upload payload of one filter band:
// channel, band, type, one reserved byte, then frequency, Q and gain as
// 32-bit floats. The device always receives the whole record even when a
// single field changed; reads go field by field. That asymmetry is a
// firmware fact and must stay.
func EncodeFilterRecord(ch contracts.Channel, band int, p contracts.FilterParams) []byte {
	buf := make([]byte, FilterRecordLen)
	buf[0] = byte(ch)
	buf[1] = byte(band)
	buf[2] = byte(p.Type)
	buf[3] = 0 // reserved
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Frequency)))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Q)))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(float32(p.Gain)))
	return buf
}

// EncodeF32 encodes one float field as the device expects it.
func EncodeF32(v float64) []byte {
	buf := make([]byte, FieldLen)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	return buf
}

// DecodeF32 decodes a 4-byte float field.
func DecodeF32(b []byte) (float64, error) {
	if len(b) < FieldLen {
		return 0, ErrShortPayload
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
}

// DecodeU32 decodes a 4-byte unsigned field (filter type, debug counters).
func DecodeU32(b []byte) (uint32, error) {
	if len(b) < FieldLen {
		return 0, ErrShortPayload
	}
	return binary.LittleEndian.Uint32(b), nil
}

// EncodeBool encodes a flag as the single-byte payload of bypass/mute sets.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeBool decodes a single-byte flag.
func DecodeBool(b []byte) (bool, error) {
	if len(b) < 1 {
		return false, ErrShortPayload
	}
	return b[0] != 0, nil
}

// DecodeStatus unpacks the consolidated status block: five u16 peak levels
// normalized to 0..1 followed by two u8 core loads in percent.
func DecodeStatus(b []byte) (contracts.SystemStatus, error) {
	var st contracts.SystemStatus
	if len(b) < StatusBlockLen {
		return st, ErrShortPayload
	}
	for i := 0; i < contracts.NumChannels; i++ {
		raw := binary.LittleEndian.Uint16(b[2*i:])
		st.Peaks[i] = float64(raw) / 65535.0
	}
	st.Load[0] = b[10]
	st.Load[1] = b[11]
	return st, nil
}

// DecodeFlashResult maps the one-byte response of a persistence command onto
// the closed result set. Anything out of range degrades to write-error.
func DecodeFlashResult(b []byte) contracts.FlashResult {
	if len(b) < 1 || b[0] > uint8(contracts.FlashCRCError) {
		return contracts.FlashWriteError
	}
	return contracts.FlashResult(b[0])
}
