package waveform

import (
	"strconv"
	"strings"
)

// DeviceBias is one device's operating-point summary extracted from the
// simulator's log output.
type DeviceBias struct {
	Name string  `json:"name"`
	VGS  float64 `json:"vgs"`
	VTH  float64 `json:"vth"`
}

// Margin is vgs - vth, the device-health headroom indicator.
func (d DeviceBias) Margin() float64 { return d.VGS - d.VTH }

// ParseBiasLog scans an operating-point log for "device", "vgs" and "vth"
// rows and zips them into per-device bias tuples.
//
// The log is untrusted free text: names and values are collected into three
// independent lists and truncated to the shortest, so a partially printed
// table contributes only the devices that got all three fields. That
// truncation is lossy on purpose; callers depend on unmatched tail entries
// being dropped silently.
func ParseBiasLog(text string) []DeviceBias {
	if text == "" {
		return nil
	}

	var devices []string
	var vgs, vth []float64

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch strings.ToLower(parts[0]) {
		case "device":
			devices = append(devices, parts[1:]...)
		case "vgs":
			vgs = append(vgs, parseFloats(parts[1:])...)
		case "vth":
			vth = append(vth, parseFloats(parts[1:])...)
		}
	}

	n := min(len(devices), len(vgs), len(vth))
	if n == 0 {
		return nil
	}
	biases := make([]DeviceBias, 0, n)
	for i := 0; i < n; i++ {
		biases = append(biases, DeviceBias{Name: devices[i], VGS: vgs[i], VTH: vth[i]})
	}
	return biases
}

func parseFloats(tokens []string) []float64 {
	var vals []float64
	for _, tok := range tokens {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			vals = append(vals, v)
		}
	}
	return vals
}
