// Package rotcode issues and verifies the rotating, time-windowed attendance
// codes. The construction is TOTP-style: a keyed hash of the current window
// index under a per-session secret, truncated to a short digit string. Codes
// for the same window are identical; codes for different windows cannot be
// derived from one another without the secret.
package rotcode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// WindowLength is the validity span of a single code.
	WindowLength = 30 * time.Second

	// Digits is the width of the human-enterable token.
	Digits = 6

	// SecretSize is the length of a freshly generated session secret.
	SecretSize = 32
)

// Code is an issued rotating code together with its validity window.
type Code struct {
	Value       string    `json:"code"`
	WindowStart time.Time `json:"window_start"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewSecret returns a random per-session code-derivation key.
func NewSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	return secret, nil
}

// WindowIndex returns the index of the window containing t.
func WindowIndex(t time.Time) int64 {
	return t.Unix() / int64(WindowLength/time.Second)
}

// WindowStart returns the start of window idx.
func WindowStart(idx int64) time.Time {
	return time.Unix(idx*int64(WindowLength/time.Second), 0).UTC()
}

// Issue derives the code for the window containing now.
func Issue(secret []byte, now time.Time) Code {
	idx := WindowIndex(now)
	start := WindowStart(idx)
	return Code{
		Value:       derive(secret, idx),
		WindowStart: start,
		ExpiresAt:   start.Add(WindowLength),
	}
}

// Verify reports whether submitted matches the code for the window containing
// now or any of the skewWindows immediately preceding windows. skewWindows=1
// tolerates roughly one window of client clock or network delay.
func Verify(secret []byte, submitted string, now time.Time, skewWindows int) bool {
	if len(submitted) != Digits {
		return false
	}
	idx := WindowIndex(now)
	for back := 0; back <= skewWindows; back++ {
		expected := derive(secret, idx-int64(back))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1 {
			return true
		}
	}
	return false
}

// derive computes HMAC-SHA256(secret, windowIndex) and reduces it to Digits
// decimal digits with the dynamic-offset truncation from RFC 4226.
func derive(secret []byte, window int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(window))

	mac := hmac.New(sha256.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < Digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", Digits, value%mod)
}
