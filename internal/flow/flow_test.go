package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/fingerprint"
	"geoattend/internal/geo"
)

type fakeLocator struct {
	pos   Position
	err   error
	calls int
}

func (l *fakeLocator) Current(_ context.Context) (Position, error) {
	l.calls++
	return l.pos, l.err
}

type fakePrinter struct {
	signals fingerprint.Signals
	err     error
}

func (p *fakePrinter) Collect(_ context.Context) (fingerprint.Signals, error) {
	return p.signals, p.err
}

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []Request
	result   attendance.Result
	err      error
	block    chan struct{} // when set, Submit waits until closed
}

func (s *fakeSubmitter) Submit(_ context.Context, req Request) (attendance.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return s.result, s.err
}

func testSignals() fingerprint.Signals {
	return fingerprint.Signals{
		UserAgent:        "test-agent",
		Language:         "en-US",
		Platform:         "Linux",
		ScreenResolution: "1920x1080",
		ColorDepth:       24,
		Timezone:         "Africa/Cairo",
	}
}

func testSessionInfo() SessionInfo {
	return SessionInfo{
		ID:          "sess-1",
		SubjectName: "Intro to Computing",
		Center:      geo.Point{Latitude: 30.0, Longitude: 31.0},
		Radius:      50,
	}
}

func readyFlow(t *testing.T) (*Flow, *fakeSubmitter) {
	t.Helper()
	sub := &fakeSubmitter{result: attendance.Result{
		AttendanceID: "att-1",
		RecordedAt:   time.Now(),
		Status:       "present",
	}}
	f := New(
		&fakeLocator{pos: Position{Point: geo.Point{Latitude: 30.0, Longitude: 31.0003}, At: time.Now()}},
		&fakePrinter{signals: testSignals()},
		sub,
	)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.SelectSession(testSessionInfo())
	f.SetCode("482913")
	return f, sub
}

func TestStartGathersBothInputs(t *testing.T) {
	f, _ := readyFlow(t)
	if f.State() != StateReady {
		t.Fatalf("state = %s, want ready", f.State())
	}
}

func TestStartLocationFailure(t *testing.T) {
	f := New(
		&fakeLocator{err: errors.New("permission denied")},
		&fakePrinter{signals: testSignals()},
		&fakeSubmitter{},
	)
	err := f.Start(context.Background())
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Errorf("got %v, want ErrLocationUnavailable", err)
	}
	if f.State() != StateFailed {
		t.Errorf("state = %s, want failed", f.State())
	}
}

func TestStartFingerprintFailure(t *testing.T) {
	f := New(
		&fakeLocator{pos: Position{At: time.Now()}},
		&fakePrinter{}, // empty signals
		&fakeSubmitter{},
	)
	if err := f.Start(context.Background()); !errors.Is(err, ErrFingerprintUnavailable) {
		t.Errorf("got %v, want ErrFingerprintUnavailable", err)
	}
}

func TestStateProgression(t *testing.T) {
	f := New(
		&fakeLocator{pos: Position{Point: geo.Point{Latitude: 30, Longitude: 31}, At: time.Now()}},
		&fakePrinter{signals: testSignals()},
		&fakeSubmitter{},
	)
	if f.State() != StateIdle {
		t.Errorf("initial state = %s, want idle", f.State())
	}
	_ = f.Start(context.Background())
	if f.State() != StateAwaitingSessionSelection {
		t.Errorf("post-start state = %s, want awaiting_session_selection", f.State())
	}
	f.SelectSession(testSessionInfo())
	if f.State() != StateAwaitingSessionSelection {
		t.Errorf("without code state = %s, want awaiting_session_selection", f.State())
	}
	f.SetCode("123456")
	if f.State() != StateReady {
		t.Errorf("state = %s, want ready", f.State())
	}
}

func TestMalformedCodeBlocksReady(t *testing.T) {
	f, _ := readyFlow(t)
	for _, bad := range []string{"12345", "1234567", "12a456", ""} {
		f.SetCode(bad)
		if f.State() == StateReady {
			t.Errorf("code %q should not make the flow ready", bad)
		}
	}
}

func TestDistancePreviewRecomputesOnReselect(t *testing.T) {
	f, _ := readyFlow(t)

	d1, inside, ok := f.DistancePreview()
	if !ok || !inside {
		t.Fatalf("expected inside first fence, d=%v ok=%v", d1, ok)
	}

	// A session centered far away: preview must flip without a new
	// location acquisition.
	far := testSessionInfo()
	far.ID = "sess-2"
	far.Center = geo.Point{Latitude: 30.01, Longitude: 31.0}
	f.SelectSession(far)

	d2, inside, ok := f.DistancePreview()
	if !ok {
		t.Fatal("preview unavailable after reselect")
	}
	if inside {
		t.Errorf("point %vm from new center reported inside 50m fence", d2)
	}
	if d2 <= d1 {
		t.Errorf("distance did not change on reselect: %v -> %v", d1, d2)
	}
}

func TestSubmitSuccess(t *testing.T) {
	f, sub := readyFlow(t)

	res, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.AttendanceID != "att-1" {
		t.Errorf("attendance id = %s, want att-1", res.AttendanceID)
	}
	if f.State() != StateSucceeded {
		t.Errorf("state = %s, want succeeded", f.State())
	}
	if len(sub.requests) != 1 {
		t.Fatalf("submitter called %d times, want 1", len(sub.requests))
	}
	req := sub.requests[0]
	if req.SessionID != "sess-1" || req.Code != "482913" {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.DeviceHash != fingerprint.Hash(testSignals()) {
		t.Error("device hash does not match collected signals")
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	f, sub := readyFlow(t)
	sub.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		_, _ = f.Submit(context.Background())
		close(done)
	}()

	// Wait for the first submit to be in flight.
	for f.State() != StateSubmitting {
		time.Sleep(time.Millisecond)
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("got %v, want ErrSubmissionInFlight", err)
	}

	close(sub.block)
	<-done
	if len(sub.requests) != 1 {
		t.Errorf("submitter called %d times, want 1", len(sub.requests))
	}
}

func TestSubmitNotReady(t *testing.T) {
	f := New(&fakeLocator{}, &fakePrinter{}, &fakeSubmitter{})
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("got %v, want ErrNotReady", err)
	}
}

func TestFailureSurfacesVerbatimAndRetries(t *testing.T) {
	f, sub := readyFlow(t)
	sub.err = attendance.ErrInvalidCode
	sub.result = attendance.Result{}

	_, err := f.Submit(context.Background())
	if !errors.Is(err, attendance.ErrInvalidCode) {
		t.Fatalf("got %v, want ErrInvalidCode surfaced verbatim", err)
	}
	if f.State() != StateFailed {
		t.Fatalf("state = %s, want failed", f.State())
	}
	if !errors.Is(f.Err(), attendance.ErrInvalidCode) {
		t.Error("flow did not retain the failure")
	}

	// Fresh location: retry returns straight to Ready.
	if err := f.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if f.State() != StateReady {
		t.Errorf("state after retry = %s, want ready", f.State())
	}
}

func TestRetryReacquiresStaleLocation(t *testing.T) {
	loc := &fakeLocator{pos: Position{Point: geo.Point{Latitude: 30, Longitude: 31.0003}, At: time.Now()}}
	sub := &fakeSubmitter{err: attendance.ErrInvalidCode}
	f := New(loc, &fakePrinter{signals: testSignals()}, sub, WithMaxLocationAge(time.Minute))
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.SelectSession(testSessionInfo())
	f.SetCode("482913")
	_, _ = f.Submit(context.Background())

	// Age the cached position past the freshness bound.
	f.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	callsBefore := loc.calls
	if err := f.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if loc.calls != callsBefore+1 {
		t.Error("stale retry did not re-acquire location")
	}
	if f.State() != StateReady {
		t.Errorf("state = %s, want ready", f.State())
	}
}

func TestStartCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := New(
		&fakeLocator{pos: Position{At: time.Now()}},
		&fakePrinter{signals: testSignals()},
		&fakeSubmitter{},
	)
	if err := f.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
