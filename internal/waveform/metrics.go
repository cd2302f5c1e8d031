package waveform

import (
	"math"
)

// epsMag floors magnitudes before taking logarithms so a zero sample maps to
// a large negative dB value instead of -Inf.
const epsMag = 1e-30

// DefaultInputPP is the assumed peak-to-peak input amplitude for transient
// gain when the caller does not supply one (2 uV differential test tone).
const DefaultInputPP = 2e-6

func magDB(re, im float64) float64 {
	return 20 * math.Log10(math.Max(epsMag, math.Hypot(re, im)))
}

// ACGainDB returns the low-frequency gain in dB: 20*log10 of the magnitude
// of the first complex sample. Empty or unreadable tables yield 0.
func ACGainDB(path string) float64 {
	tab := readTable(path)
	if tab.Empty() {
		return 0
	}
	return magDB(tab.Real[0], tab.Imag[0])
}

// BandwidthHz returns the span between the lowest and highest frequency
// whose magnitude stays within 3 dB of the first sample's gain. Returns 0
// when no sample qualifies.
func BandwidthHz(path string) float64 {
	tab := readTable(path)
	if tab.Empty() {
		return 0
	}
	half := magDB(tab.Real[0], tab.Imag[0]) - 3.0
	return bandSpan(tab, half)
}

// UnityBandwidthHz returns the span between the lowest and highest frequency
// whose magnitude is at or above 0 dB. The name is historical: this measures
// the width of the above-unity band, not a single crossing frequency, and
// downstream consumers depend on that behavior.
func UnityBandwidthHz(path string) float64 {
	tab := readTable(path)
	if tab.Empty() {
		return 0
	}
	return bandSpan(tab, 0.0)
}

// bandSpan finds the first and last sample with magnitude >= threshold dB
// and returns the frequency span between them.
func bandSpan(tab *Table, threshold float64) float64 {
	first, last := -1, -1
	for i := range tab.Sweep {
		if magDB(tab.Real[i], tab.Imag[i]) >= threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0
	}
	return tab.Sweep[last] - tab.Sweep[first]
}

// PhaseMarginDeg reads the phase at the sample closest to 0 dB.
//
// Two conventions are in play depending on the open-loop response. When the
// starting phase is near 180 deg (inverting response) the raw phase at the
// 0 dB point is already the margin. When it starts near 0 deg the margin is
// 180 minus the absolute phase. Anything else means no recognizable
// crossing, which reports 0. Both branches are intentional; do not collapse
// them into one formula.
func PhaseMarginDeg(path string) float64 {
	tab := readTable(path)
	if tab.Empty() {
		return 0
	}

	// sample closest to 0 dB
	best := 0
	bestAbs := math.Abs(magDB(tab.Real[0], tab.Imag[0]))
	for i := 1; i < len(tab.Sweep); i++ {
		if a := math.Abs(magDB(tab.Real[i], tab.Imag[i])); a < bestAbs {
			best, bestAbs = i, a
		}
	}

	phi := phaseDeg(tab.Real[best], tab.Imag[best])
	initial := phaseDeg(tab.Real[0], tab.Imag[0])

	switch {
	case math.Abs(initial-180.0) <= 15.0:
		return phi
	case math.Abs(initial) <= 15.0:
		return 180.0 - math.Abs(phi)
	default:
		return 0
	}
}

func phaseDeg(re, im float64) float64 {
	return math.Atan2(im, re) * 180.0 / math.Pi
}

// TranGainDB computes gain in dB from a transient table: peak-to-peak of the
// output channel over the supplied input peak-to-peak reference. Pass
// inputPP <= 0 to use DefaultInputPP.
func TranGainDB(path string, inputPP float64) float64 {
	if inputPP <= 0 {
		inputPP = DefaultInputPP
	}
	tab := readTable(path)
	if tab.Empty() {
		return 0
	}

	vmax, vmin := tab.Real[0], tab.Real[0]
	for _, v := range tab.Real[1:] {
		vmax = math.Max(vmax, v)
		vmin = math.Min(vmin, v)
	}
	vpp := math.Max(epsMag, vmax-vmin)
	return 20 * math.Log10(vpp/math.Max(inputPP, epsMag))
}
