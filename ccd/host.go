/*Package ccd is a small host for CCD drivers.

A Host owns exactly one driver and calls into it from a single goroutine:
client requests, timer expirations and teardown are all serialized through
the host's event loop, so drivers need no locking.  Drivers talk back to the
host through the Framework interface: messages, timers, property publication,
the primary chip and exposure completion.

*/
package ccd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/labcam/chameleon/camera"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPollingPeriod is the timer period used when none is configured
	DefaultPollingPeriod = 250 * time.Millisecond

	// DefaultMessageLog is the number of driver messages retained
	DefaultMessageLog = 256
)

var (
	// ErrNotConnected is returned for requests that need hardware while disconnected
	ErrNotConnected = errors.New("device is not connected")

	// ErrBusy is returned when an exposure is requested while one is active
	ErrBusy = errors.New("an exposure is already in progress")

	// ErrInvalidDuration is returned for exposures of zero or negative length
	ErrInvalidDuration = errors.New("exposure duration must be positive")

	// ErrUnknownProperty is returned for writes to a property no one owns
	ErrUnknownProperty = errors.New("unknown property")

	// ErrStopped is returned once the host's loop has exited
	ErrStopped = errors.New("host is stopped")

	// ErrNoFrame is returned when an exposure ends without a frame
	ErrNoFrame = errors.New("exposure ended without a frame")
)

// Framework is the set of host services a driver consumes
type Framework interface {
	// DeviceName is the name the device is published under
	DeviceName() string

	// Message sends a message to clients
	Message(format string, args ...interface{})

	// Debugf logs when debugging is enabled
	Debugf(format string, args ...interface{})

	// IsDebug reports if debugging is enabled
	IsDebug() bool

	// IsConnected reports the connection state the host believes in
	IsConnected() bool

	// PollingPeriod is the driver's base timer period
	PollingPeriod() time.Duration

	// SetTimer arms a one shot timer that calls the driver's TimerHit
	SetTimer(d time.Duration) int

	// RemoveTimer disarms a timer
	RemoveTimer(id int)

	// PrimaryCCD is the main readout chip
	PrimaryCCD() *Chip

	// DefineNumber publishes a new number vector
	DefineNumber(nv *NumberVector)

	// DeleteProperty withdraws a property
	DeleteProperty(name string)

	// SetNumber publishes new values of a number vector
	SetNumber(nv *NumberVector)

	// ExposureComplete hands the chip's frame buffer to clients
	ExposureComplete(c *Chip)

	// ExposureFailed ends an exposure that produced no frame
	ExposureFailed(c *Chip, err error)
}

// Factory builds the driver hosted by a Host
type Factory func(Framework) camera.CCD

// Config configures a Host
type Config struct {
	// DeviceName overrides the driver's default name
	DeviceName string

	// PollingPeriod is the driver's base timer period
	PollingPeriod time.Duration

	// Debug enables debug output
	Debug bool

	// MessageLog is the number of messages kept for clients
	MessageLog int

	// Logger receives every message; logrus' standard logger when nil
	Logger *logrus.Logger
}

// Message is a driver message
type Message struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Status is a snapshot of the host's view of the device
type Status struct {
	Device    string  `json:"device"`
	Connected bool    `json:"connected"`
	Exposure  State   `json:"exposure"`
	Duration  float64 `json:"duration"`
	Remaining float64 `json:"remaining"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	BPP       int     `json:"bpp"`
	BinX      int     `json:"binx"`
	BinY      int     `json:"biny"`
	LastFrame uint64  `json:"lastFrame"`
}

// Host runs one driver on an event loop
type Host struct {
	name   string
	cfg    Config
	log    *logrus.Entry
	drv    camera.CCD
	chip   *Chip
	events chan func()
	done   chan struct{}

	// everything below is owned by the loop goroutine
	connected bool
	exposure  State
	expErr    error
	props     map[string]NumberVector
	order     []string
	timers    map[int]*time.Timer
	nextTimer int
	messages  []Message
	frame     *Frame
	seq       uint64
	changed   chan struct{}

	hookMu sync.Mutex
	hooks  []func(Frame)
}

// NewHost builds the driver with factory and initializes its properties.
// The loop is not running until Run is called.
func NewHost(cfg Config, factory Factory) (*Host, error) {
	if cfg.PollingPeriod <= 0 {
		cfg.PollingPeriod = DefaultPollingPeriod
	}
	if cfg.MessageLog <= 0 {
		cfg.MessageLog = DefaultMessageLog
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	h := &Host{
		cfg:     cfg,
		chip:    NewChip(),
		events:  make(chan func()),
		done:    make(chan struct{}),
		props:   map[string]NumberVector{},
		timers:  map[int]*time.Timer{},
		changed: make(chan struct{}),
	}
	h.name = cfg.DeviceName
	h.log = cfg.Logger.WithField("device", h.name)
	h.drv = factory(h)
	if h.name == "" {
		h.name = h.drv.DefaultName()
		h.log = cfg.Logger.WithField("device", h.name)
	}
	if err := h.drv.InitProperties(); err != nil {
		return nil, errors.Wrap(err, "initializing driver properties")
	}
	return h, nil
}

// OnFrame registers a function called on the loop with every completed frame.
// It may be called from any goroutine, before or after Run.
func (h *Host) OnFrame(fn func(Frame)) {
	h.hookMu.Lock()
	h.hooks = append(h.hooks, fn)
	h.hookMu.Unlock()
}

func (h *Host) frameHooks() []func(Frame) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	return append(([]func(Frame))(nil), h.hooks...)
}

// Run processes events until ctx is done, then disconnects the driver
func (h *Host) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case fn := <-h.events:
			fn()
		case <-ctx.Done():
			h.teardown()
			return ctx.Err()
		}
	}
}

func (h *Host) teardown() {
	h.stopTimers()
	if h.connected {
		if err := h.drv.Disconnect(); err != nil {
			h.log.WithError(err).Warn("disconnect during shutdown failed")
		}
		h.connected = false
	}
}

func (h *Host) stopTimers() {
	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
}

// do runs fn on the loop and waits for it to finish
func (h *Host) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case h.events <- func() { fn(); close(finished) }:
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the loop without waiting
func (h *Host) post(fn func()) {
	select {
	case h.events <- fn:
	case <-h.done:
	}
}

func (h *Host) notify() {
	close(h.changed)
	h.changed = make(chan struct{})
}

// Connect connects the driver
func (h *Host) Connect(ctx context.Context) error {
	var err error
	derr := h.do(ctx, func() {
		if h.connected {
			return
		}
		if err = h.drv.Connect(); err != nil {
			h.log.WithError(err).Error("connect failed")
			return
		}
		h.connected = true
		h.exposure = Idle
		if uerr := h.drv.UpdateProperties(); uerr != nil {
			h.log.WithError(uerr).Warn("updating properties after connect")
		}
		h.log.Info("connected")
	})
	if derr != nil {
		return derr
	}
	return err
}

// Disconnect disconnects the driver.  It is a no-op when not connected.
func (h *Host) Disconnect(ctx context.Context) error {
	var err error
	derr := h.do(ctx, func() {
		if !h.connected {
			return
		}
		err = h.drv.Disconnect()
		h.connected = false
		h.stopTimers()
		if h.exposure == Busy {
			h.exposure = Idle
			h.notify()
		}
		if uerr := h.drv.UpdateProperties(); uerr != nil {
			h.log.WithError(uerr).Warn("updating properties after disconnect")
		}
		h.log.Info("disconnected")
	})
	if derr != nil {
		return derr
	}
	return err
}

// StartExposure starts an exposure of the given length in seconds
func (h *Host) StartExposure(ctx context.Context, seconds float64) error {
	var err error
	derr := h.do(ctx, func() {
		err = h.startExposure(seconds)
	})
	if derr != nil {
		return derr
	}
	return err
}

func (h *Host) startExposure(seconds float64) error {
	switch {
	case !h.connected:
		return ErrNotConnected
	case h.exposure == Busy:
		return ErrBusy
	case seconds <= 0:
		return ErrInvalidDuration
	}
	if err := h.drv.StartExposure(seconds); err != nil {
		h.exposure = Alert
		h.expErr = err
		h.notify()
		return err
	}
	h.exposure = Busy
	h.expErr = nil
	h.chip.SetExposureLeft(seconds)
	return nil
}

// AbortExposure aborts the exposure in progress, if any
func (h *Host) AbortExposure(ctx context.Context) error {
	var err error
	derr := h.do(ctx, func() {
		if !h.connected {
			err = ErrNotConnected
			return
		}
		if err = h.drv.AbortExposure(); err != nil {
			return
		}
		if h.exposure == Busy {
			h.exposure = Idle
			h.expErr = errors.Wrap(ErrNoFrame, "aborted")
			h.chip.SetExposureLeft(0)
			h.notify()
		}
	})
	if derr != nil {
		return derr
	}
	return err
}

// WriteNumber writes client values to a number vector
func (h *Host) WriteNumber(ctx context.Context, name string, values map[string]float64) error {
	var err error
	derr := h.do(ctx, func() {
		var handled bool
		handled, err = h.drv.NewNumber(name, values)
		if !handled && err == nil {
			err = errors.Wrap(ErrUnknownProperty, name)
		}
	})
	if derr != nil {
		return derr
	}
	return err
}

// SetBinning changes the binning of the primary chip
func (h *Host) SetBinning(ctx context.Context, bh, bv int) error {
	var err error
	derr := h.do(ctx, func() {
		if err = h.drv.UpdateCCDBin(bh, bv); err == nil {
			h.chip.SetBinning(bh, bv)
		}
	})
	if derr != nil {
		return derr
	}
	return err
}

// Status returns a snapshot of the device state
func (h *Host) Status(ctx context.Context) (Status, error) {
	var s Status
	err := h.do(ctx, func() {
		s = Status{
			Device:    h.name,
			Connected: h.connected,
			Exposure:  h.exposure,
			Duration:  h.chip.ExposureDuration(),
			Remaining: h.chip.ExposureLeft(),
			Width:     h.chip.SubW(),
			Height:    h.chip.SubH(),
			BPP:       h.chip.BPP(),
			BinX:      h.chip.BinX(),
			BinY:      h.chip.BinY(),
			LastFrame: h.seq,
		}
	})
	return s, err
}

// Properties returns copies of all published number vectors
func (h *Host) Properties(ctx context.Context) ([]NumberVector, error) {
	var out []NumberVector
	err := h.do(ctx, func() {
		out = make([]NumberVector, 0, len(h.order))
		for _, name := range h.order {
			nv := h.props[name]
			out = append(out, nv.Copy())
		}
	})
	return out, err
}

// Property returns a copy of one published number vector
func (h *Host) Property(ctx context.Context, name string) (NumberVector, error) {
	var (
		out NumberVector
		ok  bool
	)
	err := h.do(ctx, func() {
		var nv NumberVector
		if nv, ok = h.props[name]; ok {
			out = nv.Copy()
		}
	})
	if err != nil {
		return out, err
	}
	if !ok {
		return out, errors.Wrap(ErrUnknownProperty, name)
	}
	return out, nil
}

// Messages returns the retained driver messages, oldest first
func (h *Host) Messages(ctx context.Context) ([]Message, error) {
	var out []Message
	err := h.do(ctx, func() {
		out = append([]Message(nil), h.messages...)
	})
	return out, err
}

// LastFrame returns the most recent frame.  ok is false before the first.
func (h *Host) LastFrame(ctx context.Context) (Frame, bool, error) {
	var (
		f  Frame
		ok bool
	)
	err := h.do(ctx, func() {
		if h.frame != nil {
			f, ok = *h.frame, true
		}
	})
	return f, ok, err
}

// WaitFrame waits for a frame newer than after.  It returns an error if the
// exposure ends without one.
func (h *Host) WaitFrame(ctx context.Context, after uint64) (Frame, error) {
	for {
		var (
			f       Frame
			have    bool
			expErr  error
			waiting bool
			changed chan struct{}
		)
		err := h.do(ctx, func() {
			if h.frame != nil && h.frame.Seq > after {
				f, have = *h.frame, true
				return
			}
			waiting = h.exposure == Busy
			expErr = h.expErr
			changed = h.changed
		})
		if err != nil {
			return f, err
		}
		if have {
			return f, nil
		}
		if !waiting {
			if expErr == nil {
				expErr = ErrNoFrame
			}
			return f, expErr
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return f, ctx.Err()
		}
	}
}

// Expose starts an exposure and waits for its frame
func (h *Host) Expose(ctx context.Context, seconds float64) (Frame, error) {
	var (
		seq uint64
		err error
	)
	derr := h.do(ctx, func() {
		seq = h.seq
		err = h.startExposure(seconds)
	})
	if derr != nil {
		return Frame{}, derr
	}
	if err != nil {
		return Frame{}, err
	}
	return h.WaitFrame(ctx, seq)
}

// the methods below implement Framework and run on the loop

// DeviceName is the published device name
func (h *Host) DeviceName() string {
	return h.name
}

// Message logs a driver message and retains it for clients
func (h *Host) Message(format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	h.log.Info(text)
	h.messages = append(h.messages, Message{Time: time.Now(), Text: text})
	if over := len(h.messages) - h.cfg.MessageLog; over > 0 {
		h.messages = append(h.messages[:0], h.messages[over:]...)
	}
}

// Debugf logs at debug level when debugging is enabled
func (h *Host) Debugf(format string, args ...interface{}) {
	if h.cfg.Debug {
		h.log.Debugf(format, args...)
	}
}

// IsDebug reports if debugging is enabled
func (h *Host) IsDebug() bool {
	return h.cfg.Debug
}

// IsConnected reports the connection state
func (h *Host) IsConnected() bool {
	return h.connected
}

// PollingPeriod is the base timer period
func (h *Host) PollingPeriod() time.Duration {
	return h.cfg.PollingPeriod
}

// SetTimer arms a one shot timer which calls the driver's TimerHit on the loop
func (h *Host) SetTimer(d time.Duration) int {
	h.nextTimer++
	id := h.nextTimer
	h.timers[id] = time.AfterFunc(d, func() {
		h.post(func() {
			if _, ok := h.timers[id]; !ok {
				return
			}
			delete(h.timers, id)
			h.drv.TimerHit()
		})
	})
	return id
}

// RemoveTimer disarms a timer
func (h *Host) RemoveTimer(id int) {
	if t, ok := h.timers[id]; ok {
		t.Stop()
		delete(h.timers, id)
	}
}

// PrimaryCCD is the main chip
func (h *Host) PrimaryCCD() *Chip {
	return h.chip
}

// DefineNumber publishes a number vector
func (h *Host) DefineNumber(nv *NumberVector) {
	if nv.Device == "" {
		nv.Device = h.name
	}
	if _, ok := h.props[nv.Name]; !ok {
		h.order = append(h.order, nv.Name)
	}
	h.props[nv.Name] = nv.Copy()
}

// DeleteProperty withdraws a property
func (h *Host) DeleteProperty(name string) {
	if _, ok := h.props[name]; !ok {
		return
	}
	delete(h.props, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// SetNumber publishes updated values of a defined vector
func (h *Host) SetNumber(nv *NumberVector) {
	if _, ok := h.props[nv.Name]; !ok {
		h.log.WithField("property", nv.Name).Warn("set of undefined property ignored")
		return
	}
	h.props[nv.Name] = nv.Copy()
	h.Debugf("property %s now %+v", nv.Name, nv.Numbers)
}

// ExposureComplete copies the frame out of the chip and wakes waiters
func (h *Host) ExposureComplete(c *Chip) {
	var cards = h.metadata()
	h.seq++
	f := newFrame(h.seq, c, cards)
	h.frame = &f
	h.exposure = OK
	h.expErr = nil
	c.SetExposureLeft(0)
	h.notify()
	for _, fn := range h.frameHooks() {
		fn(f)
	}
}

// ExposureFailed marks the exposure failed and wakes waiters
func (h *Host) ExposureFailed(c *Chip, err error) {
	if err == nil {
		err = ErrNoFrame
	}
	h.exposure = Alert
	h.expErr = err
	c.SetExposureLeft(0)
	h.notify()
}

func (h *Host) metadata() []fitsio.Card {
	if mm, ok := h.drv.(camera.MetadataMaker); ok {
		return mm.CollectHeaderMetadata()
	}
	return nil
}
