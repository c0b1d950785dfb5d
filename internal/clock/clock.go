package clock

import (
	"sync"
	"time"
)

// Clock abstracts time reads so expiry and reconciliation logic can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Scheduler creates tickers. The real implementation wraps time.Ticker; tests
// substitute a manually driven one.
type Scheduler interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns a Clock backed by the system clock.
func Real() Clock { return realClock{} }

type realTicker struct {
	t *time.Ticker
}

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

type realScheduler struct{}

func (realScheduler) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// RealScheduler returns a Scheduler backed by wall-clock tickers.
func RealScheduler() Scheduler { return realScheduler{} }

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock frozen at the given instant.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set moves the fake clock to the given instant.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// FakeTicker is a Scheduler and Ticker driven by an explicit Tick call.
type FakeTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

// NewFakeTicker returns a manually driven ticker usable as a Scheduler.
func NewFakeTicker() *FakeTicker {
	return &FakeTicker{ch: make(chan time.Time, 1)}
}

func (ft *FakeTicker) NewTicker(time.Duration) Ticker { return ft }

func (ft *FakeTicker) C() <-chan time.Time { return ft.ch }

func (ft *FakeTicker) Stop() {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.stopped = true
}

// Stopped reports whether Stop has been called.
func (ft *FakeTicker) Stopped() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.stopped
}

// Tick delivers one tick at the given instant.
func (ft *FakeTicker) Tick(at time.Time) {
	ft.ch <- at
}
