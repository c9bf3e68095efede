// Package fingerprint derives a weak per-device identifier from signals a
// client collects about its browser and hardware. Same configuration in, same
// hash out; a different browser or a privacy reset yields a different hash.
// This is a best-effort deduplication signal, not a security boundary.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Signals holds the raw components a client reports. Optional signals that a
// platform does not expose stay at their zero value and are omitted from the
// digest input instead of failing the computation.
type Signals struct {
	UserAgent        string `json:"user_agent"`
	Language         string `json:"language"`
	Platform         string `json:"platform"`
	ScreenResolution string `json:"screen_resolution"`
	ColorDepth       int    `json:"color_depth"`
	Timezone         string `json:"timezone"`
	DeviceMemoryGB   int    `json:"device_memory_gb,omitempty"`
	CPUCount         int    `json:"cpu_count,omitempty"`
	CanvasSignature  string `json:"canvas_signature,omitempty"`
}

// Empty reports whether no signal at all was collected.
func (s Signals) Empty() bool {
	return s.UserAgent == "" && s.Language == "" && s.Platform == "" &&
		s.ScreenResolution == "" && s.ColorDepth == 0 && s.Timezone == "" &&
		s.DeviceMemoryGB == 0 && s.CPUCount == 0 && s.CanvasSignature == ""
}

// Hash joins the available signals with a fixed delimiter, digests them with
// SHA-256 and returns the lowercase hex encoding.
func Hash(s Signals) string {
	var parts []string
	add := func(v string) {
		if v != "" {
			parts = append(parts, v)
		}
	}

	add(s.UserAgent)
	add(s.Language)
	add(s.Platform)
	add(s.ScreenResolution)
	if s.ColorDepth > 0 {
		add(strconv.Itoa(s.ColorDepth))
	}
	add(s.Timezone)
	if s.DeviceMemoryGB > 0 {
		add(strconv.Itoa(s.DeviceMemoryGB))
	}
	if s.CPUCount > 0 {
		add(strconv.Itoa(s.CPUCount))
	}
	add(s.CanvasSignature)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
