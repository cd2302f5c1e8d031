package waveform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestACGainDB_FirstSampleMagnitude(t *testing.T) {
	path := writeTable(t, "ac.dat", `freq re im
1.0 100.0 0.0
10.0 100.0 0.0
`)
	assert.InDelta(t, 40.0, ACGainDB(path), 1e-9)
}

func TestACGainDB_ComplexFirstSample(t *testing.T) {
	// |3 + 4i| = 5
	path := writeTable(t, "ac.dat", `freq re im
1.0 3.0 4.0
`)
	assert.InDelta(t, 13.979400086720377, ACGainDB(path), 1e-9)
}

func TestACGainDB_TwoColumnTable(t *testing.T) {
	path := writeTable(t, "ac.dat", `freq v
1.0 10.0
`)
	assert.InDelta(t, 20.0, ACGainDB(path), 1e-9)
}

func TestACGainDB_MissingFile(t *testing.T) {
	assert.Equal(t, 0.0, ACGainDB(filepath.Join(t.TempDir(), "nope.dat")))
}

func TestACGainDB_HeaderOnly(t *testing.T) {
	path := writeTable(t, "ac.dat", "freq re im\n")
	assert.Equal(t, 0.0, ACGainDB(path))
}

func TestACGainDB_GarbageRowsDropped(t *testing.T) {
	path := writeTable(t, "ac.dat", `freq re im
not numbers here
1.0 10.0 0.0
`)
	assert.InDelta(t, 20.0, ACGainDB(path), 1e-9)
}

func TestBandwidthHz_SpanOfMinus3dBBand(t *testing.T) {
	path := writeTable(t, "ac.dat", `freq re im
1.0 100.0 0.0
10.0 100.0 0.0
100.0 80.0 0.0
1000.0 1.0 0.0
10000.0 0.1 0.0
`)
	// gain0 = 40 dB, threshold 37 dB; 80 -> 38.06 dB qualifies, 1.0 -> 0 dB does not
	assert.InDelta(t, 99.0, BandwidthHz(path), 1e-9)
}

func TestBandwidthHz_NothingQualifies(t *testing.T) {
	// Degenerate: empty table
	path := writeTable(t, "ac.dat", "freq re im\n")
	assert.Equal(t, 0.0, BandwidthHz(path))
}

func TestUnityBandwidthHz_BandNotCrossing(t *testing.T) {
	path := writeTable(t, "ac.dat", `freq re im
1.0 100.0 0.0
10.0 10.0 0.0
100.0 1.0 0.0
1000.0 0.1 0.0
`)
	// samples at or above 0 dB: 1, 10 and 100 Hz
	assert.InDelta(t, 99.0, UnityBandwidthHz(path), 1e-9)
}

func TestUnityBandwidthHz_AllBelowUnity(t *testing.T) {
	path := writeTable(t, "ac.dat", `freq re im
1.0 0.5 0.0
10.0 0.1 0.0
`)
	assert.Equal(t, 0.0, UnityBandwidthHz(path))
}

func TestPhaseMarginDeg_InvertingConvention(t *testing.T) {
	// First sample phase 180 deg; 0 dB point at phase 120 deg.
	path := writeTable(t, "ac.dat", `freq re im
1.0 -100.0 0.0
1000.0 -0.5 0.8660254037844386
`)
	assert.InDelta(t, 120.0, PhaseMarginDeg(path), 1e-6)
}

func TestPhaseMarginDeg_NonInvertingConvention(t *testing.T) {
	// First sample phase 0 deg; 0 dB point at phase -60 deg -> 180 - 60.
	path := writeTable(t, "ac.dat", `freq re im
1.0 100.0 0.0
1000.0 0.5 -0.8660254037844386
`)
	assert.InDelta(t, 120.0, PhaseMarginDeg(path), 1e-6)
}

func TestPhaseMarginDeg_UnrecognizedStartPhase(t *testing.T) {
	// First sample at 45 deg: neither convention applies.
	path := writeTable(t, "ac.dat", `freq re im
1.0 70.0 70.0
1000.0 1.0 0.0
`)
	assert.Equal(t, 0.0, PhaseMarginDeg(path))
}

func TestPhaseMarginDeg_EmptyTable(t *testing.T) {
	assert.Equal(t, 0.0, PhaseMarginDeg(filepath.Join(t.TempDir(), "nope.dat")))
}

func TestTranGainDB_PeakToPeakOverReference(t *testing.T) {
	path := writeTable(t, "tran.dat", `time v(out)
0.0 0.0
1e-6 0.001
2e-6 -0.001
`)
	// vpp = 2e-3 over default 2e-6 input -> 1000x -> 60 dB
	assert.InDelta(t, 60.0, TranGainDB(path, 0), 1e-9)
}

func TestTranGainDB_ExplicitReference(t *testing.T) {
	path := writeTable(t, "tran.dat", `time v(out)
0.0 0.0
1e-6 1.0
`)
	assert.InDelta(t, 0.0, TranGainDB(path, 1.0), 1e-9)
}

func TestTranGainDB_EmptyTable(t *testing.T) {
	assert.Equal(t, 0.0, TranGainDB(filepath.Join(t.TempDir(), "nope.dat"), 0))
}

func TestParseBiasLog_ZipsThreeLists(t *testing.T) {
	biases := ParseBiasLog(`some preamble
device m1 m2
vgs 0.9 0.8
vth 0.5 0.45
trailing noise`)

	require.Len(t, biases, 2)
	assert.Equal(t, "m1", biases[0].Name)
	assert.InDelta(t, 0.4, biases[0].Margin(), 1e-12)
	assert.Equal(t, "m2", biases[1].Name)
	assert.InDelta(t, 0.35, biases[1].Margin(), 1e-12)
}

func TestParseBiasLog_TruncatesToShortestList(t *testing.T) {
	biases := ParseBiasLog(`device m1 m2 m3
vgs 0.9 0.8 0.7
vth 0.5`)

	require.Len(t, biases, 1)
	assert.Equal(t, "m1", biases[0].Name)
}

func TestParseBiasLog_SkipsUnparsableValues(t *testing.T) {
	biases := ParseBiasLog(`device m1
vgs abc 0.9
vth 0.5`)

	require.Len(t, biases, 1)
	assert.InDelta(t, 0.9, biases[0].VGS, 1e-12)
}

func TestParseBiasLog_EmptyAndGarbage(t *testing.T) {
	assert.Nil(t, ParseBiasLog(""))
	assert.Nil(t, ParseBiasLog("nothing relevant\nat all"))
	assert.Nil(t, ParseBiasLog("device m1\nvgs 0.9"))
}
