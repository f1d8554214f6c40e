package pgrey

import (
	"fmt"
	"strings"
	"time"

	"github.com/labcam/chameleon/ccd"
)

// fakeClock only moves when told to
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	origin time.Time
}

func newFakeClock() *fakeClock {
	t := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClock{now: t, origin: t}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) Elapsed() time.Duration { return c.now.Sub(c.origin) }

// fakeFramework records everything a driver tells its host
type fakeFramework struct {
	connected bool
	chip      *ccd.Chip
	messages  []string
	timers    []time.Duration
	props     map[string]ccd.NumberVector
	sets      map[string]int
	completed int
	failed    []error
}

func newFakeFramework() *fakeFramework {
	return &fakeFramework{
		chip:  ccd.NewChip(),
		props: map[string]ccd.NumberVector{},
		sets:  map[string]int{},
	}
}

func (f *fakeFramework) DeviceName() string { return DefaultName }

func (f *fakeFramework) Message(format string, args ...interface{}) {
	f.messages = append(f.messages, fmt.Sprintf(format, args...))
}

func (f *fakeFramework) Debugf(string, ...interface{}) {}

func (f *fakeFramework) IsDebug() bool { return false }

func (f *fakeFramework) IsConnected() bool { return f.connected }

func (f *fakeFramework) PollingPeriod() time.Duration { return PollingPeriod }

func (f *fakeFramework) SetTimer(d time.Duration) int {
	f.timers = append(f.timers, d)
	return len(f.timers)
}

func (f *fakeFramework) RemoveTimer(int) {}

func (f *fakeFramework) PrimaryCCD() *ccd.Chip { return f.chip }

func (f *fakeFramework) DefineNumber(nv *ccd.NumberVector) { f.props[nv.Name] = nv.Copy() }

func (f *fakeFramework) DeleteProperty(name string) { delete(f.props, name) }

func (f *fakeFramework) SetNumber(nv *ccd.NumberVector) {
	f.props[nv.Name] = nv.Copy()
	f.sets[nv.Name]++
}

func (f *fakeFramework) ExposureComplete(*ccd.Chip) { f.completed++ }

func (f *fakeFramework) ExposureFailed(_ *ccd.Chip, err error) { f.failed = append(f.failed, err) }

func (f *fakeFramework) lastTimer() time.Duration {
	if len(f.timers) == 0 {
		return 0
	}
	return f.timers[len(f.timers)-1]
}

// said reports how many messages contain s
func (f *fakeFramework) said(s string) int {
	n := 0
	for _, m := range f.messages {
		if strings.Contains(m, s) {
			n++
		}
	}
	return n
}
