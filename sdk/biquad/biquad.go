// Package biquad derives second-order IIR coefficients from filter band
// parameters and evaluates the resulting frequency response. The math mirrors
// the device firmware exactly so a curve rendered on the host matches what
// the hardware does to the signal.
package biquad

import (
	"math"

	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// denominatorEpsilon guards against numerically degenerate sections at
// extreme Q/frequency combinations; a section whose squared denominator
// magnitude falls below it is skipped instead of contributing infinity.
const denominatorEpsilon = 1e-9

// Coefficients holds one biquad section after a0-normalization.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Identity returns the unity-gain section an off band contributes.
func Identity() Coefficients {
	return Coefficients{B0: 1}
}

// Compute derives the section coefficients for one band using the standard
// biquad cookbook forms, branching on the filter type. An off band yields
// the identity section unconditionally.
func Compute(p contracts.FilterParams, sampleRate float64) Coefficients {
	if p.Type == contracts.FilterOff {
		return Identity()
	}

	omega := 2.0 * math.Pi * p.Frequency / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)

	var b0, b1, b2, a0, a1, a2 float64

	switch p.Type {
	case contracts.FilterLowPass:
		alpha := sinOmega / (2.0 * p.Q)
		b0 = (1.0 - cosOmega) / 2.0
		b1 = 1.0 - cosOmega
		b2 = (1.0 - cosOmega) / 2.0
		a0 = 1.0 + alpha
		a1 = -2.0 * cosOmega
		a2 = 1.0 - alpha

	case contracts.FilterHighPass:
		alpha := sinOmega / (2.0 * p.Q)
		b0 = (1.0 + cosOmega) / 2.0
		b1 = -(1.0 + cosOmega)
		b2 = (1.0 + cosOmega) / 2.0
		a0 = 1.0 + alpha
		a1 = -2.0 * cosOmega
		a2 = 1.0 - alpha

	case contracts.FilterPeaking:
		A := math.Pow(10.0, p.Gain/40.0)
		alpha := sinOmega / (2.0 * p.Q)
		b0 = 1.0 + alpha*A
		b1 = -2.0 * cosOmega
		b2 = 1.0 - alpha*A
		a0 = 1.0 + alpha/A
		a1 = -2.0 * cosOmega
		a2 = 1.0 - alpha/A

	case contracts.FilterLowShelf:
		A := math.Pow(10.0, p.Gain/40.0)
		alpha := sinOmega / (2.0 * p.Q)
		sqrtAAlpha := 2.0 * math.Sqrt(A) * alpha
		b0 = A * ((A + 1) - (A-1)*cosOmega + sqrtAAlpha)
		b1 = 2.0 * A * ((A - 1) - (A+1)*cosOmega)
		b2 = A * ((A + 1) - (A-1)*cosOmega - sqrtAAlpha)
		a0 = (A + 1) + (A-1)*cosOmega + sqrtAAlpha
		a1 = -2.0 * ((A - 1) + (A+1)*cosOmega)
		a2 = (A + 1) + (A-1)*cosOmega - sqrtAAlpha

	case contracts.FilterHighShelf:
		A := math.Pow(10.0, p.Gain/40.0)
		alpha := sinOmega / (2.0 * p.Q)
		sqrtAAlpha := 2.0 * math.Sqrt(A) * alpha
		b0 = A * ((A + 1) + (A-1)*cosOmega + sqrtAAlpha)
		b1 = -2.0 * A * ((A - 1) + (A+1)*cosOmega)
		b2 = A * ((A + 1) + (A-1)*cosOmega - sqrtAAlpha)
		a0 = (A + 1) - (A-1)*cosOmega + sqrtAAlpha
		a1 = 2.0 * ((A - 1) - (A+1)*cosOmega)
		a2 = (A + 1) - (A-1)*cosOmega - sqrtAAlpha

	default:
		return Identity()
	}

	invA0 := 1.0 / a0
	return Coefficients{
		B0: b0 * invA0,
		B1: b1 * invA0,
		B2: b2 * invA0,
		A1: a1 * invA0,
		A2: a2 * invA0,
	}
}

// MagnitudeSquared evaluates |H(e^jw)|^2 of one section at the normalized
// angular frequency omega, substituting z = e^jw in closed form through
// cos(w), cos(2w), sin(w), sin(2w). The returned pair is numerator and
// denominator squared magnitudes so the caller can apply the degenerate
// guard before dividing.
func (c Coefficients) MagnitudeSquared(omega float64) (num, den float64) {
	cos1 := math.Cos(omega)
	cos2 := math.Cos(2.0 * omega)
	sin1 := math.Sin(omega)
	sin2 := math.Sin(2.0 * omega)

	numRe := c.B0 + c.B1*cos1 + c.B2*cos2
	numIm := c.B1*sin1 + c.B2*sin2
	denRe := 1.0 + c.A1*cos1 + c.A2*cos2
	denIm := c.A1*sin1 + c.A2*sin2

	return numRe*numRe + numIm*numIm, denRe*denRe + denIm*denIm
}

// ChainResponseDB evaluates the cascaded response of a filter chain at one
// frequency. Sections multiply (a cascade, not a sum): the squared
// magnitudes of every active band are accumulated as a product and converted
// with 10*log10, which is the factor-of-10 form the firmware uses on squared
// magnitude. Off bands and numerically degenerate sections are skipped.
func ChainResponseDB(filters []contracts.FilterParams, sampleRate, freq float64) float64 {
	omega := 2.0 * math.Pi * freq / sampleRate

	product := 1.0
	for _, p := range filters {
		if p.Type == contracts.FilterOff {
			continue
		}
		num, den := Compute(p, sampleRate).MagnitudeSquared(omega)
		if den < denominatorEpsilon {
			continue
		}
		product *= num / den
	}
	return 10.0 * math.Log10(product)
}
