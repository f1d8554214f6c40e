package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"
	"github.com/labcam/chameleon/ccd"
	"github.com/labcam/chameleon/dc1394"
	"github.com/labcam/chameleon/imgrec"
	"github.com/labcam/chameleon/pgrey"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv *httptest.Server
	cam *dc1394.MockCamera
	rec *imgrec.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cam := dc1394.NewMockCamera(0x00b09d0100a1b2c3)
	bus := dc1394.NewMock(cam)
	logger, _ := test.NewNullLogger()
	h, err := ccd.NewHost(ccd.Config{Logger: logger, PollingPeriod: 10 * time.Millisecond},
		pgrey.Factory(bus.Opener(), pgrey.Options{}))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	rec := imgrec.New(t.TempDir(), "cham", false)
	w := NewHTTPCamera(h, rec)
	w.Log = logger
	mux := chi.NewRouter()
	w.RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &fixture{srv: srv, cam: cam, rec: rec}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func TestRequiresConnection(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/connected", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"bool":false}`, string(body))

	code, _ = f.do(t, http.MethodPost, "/exposure", `{"f64":1}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodGet, "/gain", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.do(t, http.MethodGet, "/image", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestExposeOverHTTP(t *testing.T) {
	f := newFixture(t)
	code, _ := f.do(t, http.MethodPost, "/connect", "")
	require.Equal(t, http.StatusOK, code)

	code, body := f.do(t, http.MethodGet, "/image?exposureTime=20ms&fmt=png", "")
	require.Equal(t, http.StatusOK, code, string(body))
	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, pgrey.Width, img.Bounds().Dx())
	assert.Equal(t, pgrey.Height, img.Bounds().Dy())

	code, body = f.do(t, http.MethodGet, "/exposure", "")
	require.Equal(t, http.StatusOK, code)
	var st ExposureState
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, uint64(1), st.LastFrame)
	assert.InDelta(t, 0.02, st.Duration, 1e-9)

	code, body = f.do(t, http.MethodGet, "/image?fmt=fits", "")
	require.Equal(t, http.StatusOK, code)
	fits, err := fitsio.Open(bytes.NewReader(body))
	require.NoError(t, err)
	defer fits.Close()
	hdr := fits.HDU(0).Header()
	assert.Equal(t, 8, hdr.Bitpix())
	assert.Equal(t, []int{pgrey.Width, pgrey.Height}, hdr.Axes())
	assert.NotNil(t, hdr.Get("EXPTIME"))
	assert.NotNil(t, hdr.Get("INSTRUME"))

	code, _ = f.do(t, http.MethodGet, "/image?fmt=bmp", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodGet, "/image?exposureTime=soon", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGainOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/connect", "")

	code, _ := f.do(t, http.MethodPost, "/gain", `{"f64":24}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 24., f.cam.Feature(dc1394.FeatureGain).Value)

	code, _ = f.do(t, http.MethodPost, "/gain", `{"f64":24.5}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 24., f.cam.Feature(dc1394.FeatureGain).Value)

	code, body := f.do(t, http.MethodGet, "/gain", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"f64":24}`, string(body))

	code, _ = f.do(t, http.MethodPost, "/property/GAIN", `{"GAIN_VALUE":2}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2., f.cam.Feature(dc1394.FeatureGain).Value)

	code, _ = f.do(t, http.MethodGet, "/property/NOPE", "")
	assert.Equal(t, http.StatusNotFound, code)

	f.do(t, http.MethodPost, "/disconnect", "")
	code, _ = f.do(t, http.MethodGet, "/gain", "")
	assert.Equal(t, http.StatusNotFound, code, "gain is undefined while disconnected")
}

func TestTemperatureOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/connect", "")
	code, body := f.do(t, http.MethodGet, "/temperature", "")
	require.Equal(t, http.StatusOK, code)
	var ft struct {
		F64 float64 `json:"f64"`
	}
	require.NoError(t, json.Unmarshal(body, &ft))
	assert.InDelta(t, 26.85, ft.F64, 1e-9)
}

func TestTemperatureUnavailable(t *testing.T) {
	f := newFixture(t)
	f.cam.TemperatureRaw = 0
	f.do(t, http.MethodPost, "/connect", "")
	code, _ := f.do(t, http.MethodGet, "/temperature", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestBinningOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/connect", "")
	code, _ := f.do(t, http.MethodPost, "/binning", `{"h":2,"v":2}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, body := f.do(t, http.MethodGet, "/binning", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"h":1,"v":1}`, string(body))
}

func TestPropertiesAndMessages(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/connect", "")
	code, body := f.do(t, http.MethodGet, "/properties", "")
	require.Equal(t, http.StatusOK, code)
	var props []ccd.NumberVector
	require.NoError(t, json.Unmarshal(body, &props))
	names := []string{}
	for _, p := range props {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"GAIN", "Temperature"}, names)

	code, body = f.do(t, http.MethodGet, "/messages", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "connected")

	code, _ = f.do(t, http.MethodPost, "/disconnect", "")
	assert.Equal(t, http.StatusOK, code)
	code, body = f.do(t, http.MethodGet, "/properties", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))
}

func TestRecorderHook(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/connect", "")
	code, _ := f.do(t, http.MethodPost, "/autowrite/enabled", `{"bool":true}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodGet, "/image?exposureTime=0.01", "")
	require.Equal(t, http.StatusOK, code)

	root, _, _ := f.rec.Settings()
	matches, err := filepath.Glob(filepath.Join(root, "*", "cham*.fits"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	fid, err := os.Open(matches[0])
	require.NoError(t, err)
	defer fid.Close()
	fits, err := fitsio.Open(fid)
	require.NoError(t, err)
	defer fits.Close()
	assert.Equal(t, 8, fits.HDU(0).Header().Bitpix())
}

func TestWriteFits16(t *testing.T) {
	fr := ccd.Frame{Width: 2, Height: 1, BPP: 16, Pix: []byte{0x00, 0x01, 0xff, 0xff}}
	var buf bytes.Buffer
	require.NoError(t, WriteFits(&buf, FrameCards(fr), []ccd.Frame{fr}))
	fits, err := fitsio.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer fits.Close()
	hdr := fits.HDU(0).Header()
	assert.Equal(t, 16, hdr.Bitpix())
	assert.NotNil(t, hdr.Get("BZERO"))
}

func TestWriteFitsSizeMismatch(t *testing.T) {
	fr := ccd.Frame{Width: 4, Height: 4, BPP: 8, Pix: []byte{1, 2, 3}}
	assert.Error(t, WriteFits(io.Discard, nil, []ccd.Frame{fr}))
	assert.Error(t, WriteFits(io.Discard, nil, nil))
}
