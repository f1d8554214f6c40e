// Package camera provides an HTTP interface to a hosted CCD
package camera

import (
	"context"
	"encoding/json"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/labcam/chameleon/ccd"
	"github.com/labcam/chameleon/generichttp"
	"github.com/labcam/chameleon/imgrec"
	"github.com/labcam/chameleon/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrTemperatureUnavailable is returned when the sensor has no valid reading
var ErrTemperatureUnavailable = errors.New("temperature unavailable")

// Binning encapsulates information about pixel addition on camera
type Binning struct {
	// H is the horizontal binning factor
	H int `json:"h"`

	// V is the vertical binning factor
	V int `json:"v"`
}

// ExposureState is the reply to GET /exposure
type ExposureState struct {
	State     ccd.State `json:"state"`
	Duration  float64   `json:"duration"`
	Remaining float64   `json:"remaining"`
	LastFrame uint64    `json:"lastFrame"`
}

// Setting names a member of a number vector
type Setting struct {
	Vector string
	Member string
}

// Gain and Temperature are the settings served on /gain and /temperature
var (
	Gain        = Setting{Vector: "GAIN", Member: "GAIN_VALUE"}
	Temperature = Setting{Vector: "Temperature", Member: "TEMPERATURE"}
)

// HTTPCamera wraps a ccd.Host in an HTTP interface
type HTTPCamera struct {
	Host *ccd.Host

	// Recorder, if not nil, receives a FITS file of every completed frame
	// while enabled
	Recorder *imgrec.Recorder

	// Timeout bounds every request, plus the exposure time for requests which expose
	Timeout time.Duration

	// Log receives recorder errors
	Log logrus.FieldLogger

	RouteTable generichttp.RouteTable
}

// NewHTTPCamera returns a new HTTP wrapper around a host.  When rec is not
// nil, its routes are injected and frames are recorded through it.
func NewHTTPCamera(h *ccd.Host, rec *imgrec.Recorder) HTTPCamera {
	w := HTTPCamera{
		Host:     h,
		Recorder: rec,
		Timeout:  30 * time.Second,
		Log:      logrus.StandardLogger(),
	}
	rt := generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/connect"}:          w.Connect,
		{Method: http.MethodPost, Path: "/disconnect"}:       w.Disconnect,
		{Method: http.MethodGet, Path: "/connected"}:         generichttp.GetBool(w.connected),
		{Method: http.MethodGet, Path: "/status"}:            w.Status,
		{Method: http.MethodPost, Path: "/exposure"}:         w.StartExposure,
		{Method: http.MethodGet, Path: "/exposure"}:          w.GetExposure,
		{Method: http.MethodPost, Path: "/abort"}:            w.Abort,
		{Method: http.MethodGet, Path: "/image"}:             w.GetFrame,
		{Method: http.MethodGet, Path: "/gain"}:              w.GetGain,
		{Method: http.MethodPost, Path: "/gain"}:             w.SetGain,
		{Method: http.MethodGet, Path: "/temperature"}:       w.GetTemperature,
		{Method: http.MethodGet, Path: "/binning"}:           w.GetBinning,
		{Method: http.MethodPost, Path: "/binning"}:          w.SetBinning,
		{Method: http.MethodGet, Path: "/properties"}:        w.Properties,
		{Method: http.MethodGet, Path: "/property/{name}"}:   w.GetProperty,
		{Method: http.MethodPost, Path: "/property/{name}"}:  w.SetProperty,
		{Method: http.MethodGet, Path: "/messages"}:          w.Messages,
		{Method: http.MethodGet, Path: "/last-frame-number"}: generichttp.GetInt(w.lastFrameNumber),
	}
	w.RouteTable = rt
	if rec != nil {
		imgrec.NewHTTPWrapper(rec).Inject(w)
		h.OnFrame(w.record)
	}
	return w
}

// RT satisfies generichttp.HTTPer
func (c HTTPCamera) RT() generichttp.RouteTable {
	return c.RouteTable
}

func (c HTTPCamera) ctx(r *http.Request, extra time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), c.Timeout+extra)
}

// httpError replies with the status code matching err
func httpError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch errors.Cause(err) {
	case ccd.ErrNotConnected, ccd.ErrBusy:
		code = http.StatusConflict
	case ccd.ErrInvalidDuration, ccd.ErrOutOfRange, ccd.ErrUnknownMember, ccd.ErrReadOnly:
		code = http.StatusBadRequest
	case ccd.ErrUnknownProperty, ccd.ErrNoFrame:
		code = http.StatusNotFound
	case ErrTemperatureUnavailable:
		code = http.StatusServiceUnavailable
	case context.DeadlineExceeded:
		code = http.StatusGatewayTimeout
	}
	http.Error(w, err.Error(), code)
}

// record writes a completed frame through the recorder
func (c HTTPCamera) record(f ccd.Frame) {
	fn, err := c.Recorder.Record(func(w io.Writer) error {
		return WriteFits(w, FrameCards(f), []ccd.Frame{f})
	})
	if err != nil {
		c.Log.WithError(err).Error("recording frame")
		return
	}
	if fn != "" {
		c.Log.WithField("file", fn).Debug("frame recorded")
	}
}

// Connect connects the camera
func (c HTTPCamera) Connect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	if err := c.Host.Connect(ctx); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Disconnect disconnects the camera
func (c HTTPCamera) Disconnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	if err := c.Host.Disconnect(ctx); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c HTTPCamera) connected() (bool, error) {
	st, err := c.Host.Status(context.Background())
	return st.Connected, err
}

func (c HTTPCamera) lastFrameNumber() (int, error) {
	st, err := c.Host.Status(context.Background())
	return int(st.LastFrame), err
}

// Status returns the host status as JSON
func (c HTTPCamera) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	st, err := c.Host.Status(ctx)
	if err != nil {
		httpError(w, err)
		return
	}
	generichttp.Reply(w, st)
}

// parseExposure reads an exposure time in seconds from the exposureTime query
// parameter (any time.ParseDuration string, bare numbers are seconds) or a
// {"f64": seconds} body.  ok is false when neither is given.
func parseExposure(r *http.Request, body bool) (secs float64, ok bool, err error) {
	texp := r.URL.Query().Get("exposureTime")
	if texp != "" {
		if util.AllElementsNumbers(texp) {
			texp = texp + "s"
		}
		d, err := time.ParseDuration(texp)
		if err != nil {
			return 0, false, err
		}
		return d.Seconds(), true, nil
	}
	if !body {
		return 0, false, nil
	}
	f := generichttp.FloatT{}
	err = json.NewDecoder(r.Body).Decode(&f)
	defer r.Body.Close()
	if err != nil {
		return 0, false, err
	}
	return f.F64, true, nil
}

// StartExposure starts an exposure without waiting for it
func (c HTTPCamera) StartExposure(w http.ResponseWriter, r *http.Request) {
	secs, _, err := parseExposure(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	if err = c.Host.StartExposure(ctx, secs); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetExposure returns the state of the exposure
func (c HTTPCamera) GetExposure(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	st, err := c.Host.Status(ctx)
	if err != nil {
		httpError(w, err)
		return
	}
	generichttp.Reply(w, ExposureState{
		State:     st.Exposure,
		Duration:  st.Duration,
		Remaining: st.Remaining,
		LastFrame: st.LastFrame,
	})
}

// Abort aborts the exposure in progress
func (c HTTPCamera) Abort(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	if err := c.Host.AbortExposure(ctx); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetFrame returns a frame on a GET request.
//
// the exposure time may be specified as a query parameter in any time-looking
// format, such as "25ms" or "10us", or a bare number of seconds.  When it is
// given an exposure is taken and its frame returned; otherwise the most recent
// frame is returned.
//
// the image format may be specified in the fmt query parameter, one of fits,
// png, or jpg; default to jpg
func (c HTTPCamera) GetFrame(w http.ResponseWriter, r *http.Request) {
	secs, expose, err := parseExposure(r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var f ccd.Frame
	if expose {
		ctx, cancel := c.ctx(r, util.SecsToDuration(secs))
		defer cancel()
		f, err = c.Host.Expose(ctx, secs)
		if err != nil {
			httpError(w, err)
			return
		}
	} else {
		ctx, cancel := c.ctx(r, 0)
		defer cancel()
		var ok bool
		f, ok, err = c.Host.LastFrame(ctx)
		if err != nil {
			httpError(w, err)
			return
		}
		if !ok {
			httpError(w, ccd.ErrNoFrame)
			return
		}
	}

	format := r.URL.Query().Get("fmt")
	if format == "" {
		format = "jpg"
	}
	hdr := w.Header()
	switch format {
	case "jpg", "jpeg":
		hdr.Set("Content-Type", "image/jpeg")
		jpeg.Encode(w, f.Image(), nil)
	case "png":
		hdr.Set("Content-Type", "image/png")
		png.Encode(w, f.Image())
	case "fits":
		hdr.Set("Content-Type", "image/fits")
		hdr.Set("Content-Disposition", "attachment; filename=image.fits")
		if err = WriteFits(w, FrameCards(f), []ccd.Frame{f}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	default:
		http.Error(w, "unknown image format "+format, http.StatusBadRequest)
	}
}

func (c HTTPCamera) setting(s Setting) (float64, ccd.State, error) {
	nv, err := c.Host.Property(context.Background(), s.Vector)
	if err != nil {
		return 0, ccd.Idle, err
	}
	n := nv.Find(s.Member)
	if n == nil {
		return 0, ccd.Idle, errors.Wrapf(ccd.ErrUnknownMember, "%s.%s", s.Vector, s.Member)
	}
	return n.Value, nv.State, nil
}

// GetGain returns the gain as {"f64": dB}
func (c HTTPCamera) GetGain(w http.ResponseWriter, r *http.Request) {
	v, _, err := c.setting(Gain)
	if err != nil {
		httpError(w, err)
		return
	}
	generichttp.Reply(w, generichttp.FloatT{F64: v})
}

// SetGain writes {"f64": dB} to the gain
func (c HTTPCamera) SetGain(w http.ResponseWriter, r *http.Request) {
	f := generichttp.FloatT{}
	err := json.NewDecoder(r.Body).Decode(&f)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	if err = c.Host.WriteNumber(ctx, Gain.Vector, map[string]float64{Gain.Member: f.F64}); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetTemperature returns the sensor temperature as {"f64": celsius}
func (c HTTPCamera) GetTemperature(w http.ResponseWriter, r *http.Request) {
	v, state, err := c.setting(Temperature)
	if err != nil {
		httpError(w, err)
		return
	}
	if state != ccd.OK {
		httpError(w, ErrTemperatureUnavailable)
		return
	}
	generichttp.Reply(w, generichttp.FloatT{F64: v})
}

// GetBinning returns the binning as {"h": 1, "v": 1}
func (c HTTPCamera) GetBinning(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	st, err := c.Host.Status(ctx)
	if err != nil {
		httpError(w, err)
		return
	}
	generichttp.Reply(w, Binning{H: st.BinX, V: st.BinY})
}

// SetBinning sets the binning from {"h": 1, "v": 1}
func (c HTTPCamera) SetBinning(w http.ResponseWriter, r *http.Request) {
	b := Binning{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	if err = c.Host.SetBinning(ctx, b.H, b.V); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Properties returns every number vector
func (c HTTPCamera) Properties(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	props, err := c.Host.Properties(ctx)
	if err != nil {
		httpError(w, err)
		return
	}
	generichttp.Reply(w, props)
}

// GetProperty returns one number vector
func (c HTTPCamera) GetProperty(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	nv, err := c.Host.Property(ctx, chi.URLParam(r, "name"))
	if err != nil {
		httpError(w, err)
		return
	}
	generichttp.Reply(w, nv)
}

// SetProperty writes {"MEMBER": value, ...} to a number vector
func (c HTTPCamera) SetProperty(w http.ResponseWriter, r *http.Request) {
	values := map[string]float64{}
	err := json.NewDecoder(r.Body).Decode(&values)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	if err = c.Host.WriteNumber(ctx, chi.URLParam(r, "name"), values); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Messages returns the driver's recent messages
func (c HTTPCamera) Messages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.ctx(r, 0)
	defer cancel()
	msgs, err := c.Host.Messages(ctx)
	if err != nil {
		httpError(w, err)
		return
	}
	generichttp.Reply(w, msgs)
}
