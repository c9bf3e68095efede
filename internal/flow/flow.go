// Package flow implements the client-side submission state machine: acquire
// location and a device fingerprint (concurrently), pick a session, enter the
// displayed code, submit once, and interpret the result.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/fingerprint"
	"geoattend/internal/geo"
)

// State is the submission flow's current phase.
type State int

const (
	StateIdle State = iota
	StateAcquiringLocation
	StateAwaitingSessionSelection
	StateAcquiringFingerprint
	StateReady
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringLocation:
		return "acquiring_location"
	case StateAwaitingSessionSelection:
		return "awaiting_session_selection"
	case StateAcquiringFingerprint:
		return "acquiring_fingerprint"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrLocationUnavailable covers permission denial, timeouts and missing
	// platform support.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrFingerprintUnavailable means no device signal could be collected.
	ErrFingerprintUnavailable = errors.New("device fingerprint unavailable")

	// ErrNotReady is returned by Submit before location, fingerprint,
	// session and code are all in place.
	ErrNotReady = errors.New("submission not ready")

	// ErrSubmissionInFlight is returned by Submit while a request is
	// already outstanding.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// Position is an acquired location with its accuracy and age.
type Position struct {
	Point     geo.Point
	AccuracyM float64
	At        time.Time
}

// Locator acquires the current position, bounded by its context.
type Locator interface {
	Current(ctx context.Context) (Position, error)
}

// Fingerprinter collects the device signals the fingerprint hash is built
// from.
type Fingerprinter interface {
	Collect(ctx context.Context) (fingerprint.Signals, error)
}

// SessionInfo is the slice of a session the flow needs for selection and the
// geofence preview.
type SessionInfo struct {
	ID          string
	SubjectName string
	Center      geo.Point
	Radius      float64
}

// Request is a prepared submission handed to the Submitter.
type Request struct {
	SessionID  string
	Code       string
	Location   geo.Point
	DeviceHash string
	Signals    fingerprint.Signals
}

// Submitter delivers a submission to the attendance validator.
type Submitter interface {
	Submit(ctx context.Context, req Request) (attendance.Result, error)
}

// Flow is one student's submission attempt. Safe for use from UI callbacks
// firing on different goroutines.
type Flow struct {
	locator   Locator
	prints    Fingerprinter
	submitter Submitter

	locationTimeout time.Duration
	maxLocationAge  time.Duration
	now             func() time.Time

	mu         sync.Mutex
	state      State
	position   *Position
	signals    fingerprint.Signals
	deviceHash string
	selected   *SessionInfo
	code       string
	result     *attendance.Result
	lastErr    error
}

// Option tweaks flow construction.
type Option func(*Flow)

// WithLocationTimeout bounds each location acquisition attempt.
func WithLocationTimeout(d time.Duration) Option {
	return func(f *Flow) { f.locationTimeout = d }
}

// WithMaxLocationAge sets how old a cached position may be before a retry
// forces re-acquisition.
func WithMaxLocationAge(d time.Duration) Option {
	return func(f *Flow) { f.maxLocationAge = d }
}

// New creates an idle flow.
func New(locator Locator, prints Fingerprinter, submitter Submitter, opts ...Option) *Flow {
	f := &Flow{
		locator:         locator,
		prints:          prints,
		submitter:       submitter,
		locationTimeout: 10 * time.Second,
		maxLocationAge:  2 * time.Minute,
		now:             time.Now,
		state:           StateIdle,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// State returns the current phase.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the error that moved the flow to Failed, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Result returns the accepted submission's result after Succeeded.
func (f *Flow) Result() (attendance.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return attendance.Result{}, false
	}
	return *f.result, true
}

// Start acquires location and fingerprint concurrently. It blocks until both
// finish or ctx is cancelled; cancellation abandons both acquisitions with no
// state written.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	f.state = StateAcquiringLocation
	f.lastErr = nil
	f.mu.Unlock()

	var (
		wg     sync.WaitGroup
		pos    Position
		posErr error
		sigs   fingerprint.Signals
		sigErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		lctx, cancel := context.WithTimeout(ctx, f.locationTimeout)
		defer cancel()
		pos, posErr = f.locator.Current(lctx)
	}()
	go func() {
		defer wg.Done()
		sigs, sigErr = f.prints.Collect(ctx)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		f.fail(err)
		return err
	}
	if posErr != nil {
		err := fmt.Errorf("%w: %v", ErrLocationUnavailable, posErr)
		f.fail(err)
		return err
	}
	if sigErr != nil || sigs.Empty() {
		err := ErrFingerprintUnavailable
		if sigErr != nil {
			err = fmt.Errorf("%w: %v", ErrFingerprintUnavailable, sigErr)
		}
		f.fail(err)
		return err
	}

	f.mu.Lock()
	f.position = &pos
	f.signals = sigs
	f.deviceHash = fingerprint.Hash(sigs)
	f.advanceLocked()
	f.mu.Unlock()
	return nil
}

// SelectSession picks (or switches) the target session. The geofence preview
// recomputes from the cached position; location is not re-acquired.
func (f *Flow) SelectSession(s SessionInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = &s
	f.advanceLocked()
}

// SetCode records the user-entered verification code.
func (f *Flow) SetCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code = code
	f.advanceLocked()
}

// DistancePreview returns the distance to the selected session's center and
// whether the cached position falls inside its fence. ok is false until both
// a position and a session are present.
func (f *Flow) DistancePreview() (distance float64, inside, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.position == nil || f.selected == nil {
		return 0, false, false
	}
	inside, distance = geo.WithinRadius(f.position.Point, f.selected.Center, f.selected.Radius)
	return distance, inside, true
}

// Submit sends the prepared submission. It is single-flight: a second call
// while one is outstanding fails with ErrSubmissionInFlight. The server's
// duplicate gate remains the authority; this only prevents doubled network
// calls.
func (f *Flow) Submit(ctx context.Context) (attendance.Result, error) {
	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return attendance.Result{}, ErrSubmissionInFlight
	}
	if f.state != StateReady {
		f.mu.Unlock()
		return attendance.Result{}, ErrNotReady
	}
	req := Request{
		SessionID:  f.selected.ID,
		Code:       f.code,
		Location:   f.position.Point,
		DeviceHash: f.deviceHash,
		Signals:    f.signals,
	}
	f.state = StateSubmitting
	f.mu.Unlock()

	res, err := f.submitter.Submit(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateFailed
		f.lastErr = err
		return attendance.Result{}, err
	}
	f.state = StateSucceeded
	f.result = &res
	return res, nil
}

// Retry re-arms a failed attempt. If the cached position is still fresh the
// flow returns straight to Ready; otherwise location is re-acquired (the
// fingerprint is stable and reused).
func (f *Flow) Retry(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateFailed {
		f.mu.Unlock()
		return fmt.Errorf("retry from %s", f.state)
	}
	fresh := f.position != nil && f.now().Sub(f.position.At) <= f.maxLocationAge
	if fresh {
		f.lastErr = nil
		f.state = StateIdle
		f.advanceLocked()
		f.mu.Unlock()
		return nil
	}
	f.state = StateAcquiringLocation
	f.position = nil
	f.lastErr = nil
	f.mu.Unlock()

	lctx, cancel := context.WithTimeout(ctx, f.locationTimeout)
	defer cancel()
	pos, err := f.locator.Current(lctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
		f.fail(err)
		return err
	}

	f.mu.Lock()
	f.position = &pos
	f.advanceLocked()
	f.mu.Unlock()
	return nil
}

// advanceLocked recomputes the resting state from what has been gathered so
// far. Mutex held by caller. Terminal and in-flight states are left alone.
func (f *Flow) advanceLocked() {
	switch f.state {
	case StateSubmitting, StateSucceeded, StateFailed:
		return
	}
	switch {
	case f.position == nil:
		f.state = StateAcquiringLocation
	case f.deviceHash == "":
		f.state = StateAcquiringFingerprint
	case f.selected == nil:
		f.state = StateAwaitingSessionSelection
	case !wellFormedCode(f.code):
		f.state = StateAwaitingSessionSelection
	default:
		f.state = StateReady
	}
}

func (f *Flow) fail(err error) {
	f.mu.Lock()
	f.state = StateFailed
	f.lastErr = err
	f.mu.Unlock()
}

func wellFormedCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
