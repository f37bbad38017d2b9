package store

import (
	"math"

	"github.com/WeebLabs/DSPi-Console/sdk/biquad"
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// ResponseDB evaluates the channel's cascaded frequency response at one
// frequency. The master bypass override lives here, not in the math engine:
// bypass is a device-wide toggle, not a filter property, and it pins the two
// input channels to exactly 0 dB whatever their bands hold.
func (s *Store) ResponseDB(ch contracts.Channel, freq float64) float64 {
	if !ch.Valid() {
		return 0
	}

	s.mu.RLock()
	bypass := s.global.Bypass
	filters := make([]contracts.FilterParams, len(s.channels[ch].Filters))
	copy(filters, s.channels[ch].Filters)
	s.mu.RUnlock()

	if bypass && ch.IsInput() {
		return 0
	}
	return biquad.ChainResponseDB(filters, s.sampleRate, freq)
}

// ResponseCurve samples the channel response on a log-spaced grid of the
// given size over [fmin, fmax], endpoints included.
func (s *Store) ResponseCurve(ch contracts.Channel, points int, fmin, fmax float64) []contracts.ResponsePoint {
	if points < 2 || fmin <= 0 || fmax <= fmin {
		return nil
	}
	curve := make([]contracts.ResponsePoint, points)
	ratio := math.Log(fmax / fmin)
	for i := range curve {
		f := fmin * math.Exp(ratio*float64(i)/float64(points-1))
		curve[i] = contracts.ResponsePoint{
			Frequency: f,
			Magnitude: s.ResponseDB(ch, f),
		}
	}
	return curve
}
