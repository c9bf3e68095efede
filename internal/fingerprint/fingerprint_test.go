package fingerprint

import "testing"

func fullSignals() Signals {
	return Signals{
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64)",
		Language:         "en-US",
		Platform:         "Linux x86_64",
		ScreenResolution: "1920x1080",
		ColorDepth:       24,
		Timezone:         "Africa/Cairo",
		DeviceMemoryGB:   8,
		CPUCount:         4,
		CanvasSignature:  "data:image/png;base64,iVBORw0KGgo",
	}
}

func TestHashDeterministic(t *testing.T) {
	a := Hash(fullSignals())
	b := Hash(fullSignals())
	if a != b {
		t.Errorf("same signals produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestHashChangesWithSignals(t *testing.T) {
	base := Hash(fullSignals())

	s := fullSignals()
	s.ScreenResolution = "1280x720"
	if Hash(s) == base {
		t.Error("different screen resolution produced identical hash")
	}

	s = fullSignals()
	s.Timezone = "Europe/Berlin"
	if Hash(s) == base {
		t.Error("different timezone produced identical hash")
	}
}

func TestHashOmitsMissingSignals(t *testing.T) {
	s := fullSignals()
	s.DeviceMemoryGB = 0
	s.CanvasSignature = ""

	// Missing optional signals must still hash, and differently from the
	// full set.
	h := Hash(s)
	if len(h) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h))
	}
	if h == Hash(fullSignals()) {
		t.Error("omitting signals did not change the hash")
	}
}

func TestEmpty(t *testing.T) {
	if !(Signals{}).Empty() {
		t.Error("zero Signals should be Empty")
	}
	if fullSignals().Empty() {
		t.Error("populated Signals should not be Empty")
	}
}
