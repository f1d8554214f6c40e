package generichttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubMuxSanitize(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		"/":         "/",
		"cam":       "/cam",
		"/cam/":     "/cam",
		"omc/cham/": "/omc/cham",
	}
	for in, expected := range cases {
		assert.Equal(t, expected, SubMuxSanitize(in), "input %q", in)
	}
}

func TestHandlerFactories(t *testing.T) {
	var (
		f   = 1.5
		s   = "cham"
		b   = false
		bad = errors.New("device fault")
	)
	rt := RouteTable{
		{Method: http.MethodGet, Path: "/f"}:  GetFloat(func() (float64, error) { return f, nil }),
		{Method: http.MethodPost, Path: "/f"}: SetFloat(func(v float64) error { f = v; return nil }),
		{Method: http.MethodGet, Path: "/s"}:  GetString(func() (string, error) { return s, nil }),
		{Method: http.MethodPost, Path: "/s"}: SetString(func(v string) error { s = v; return nil }),
		{Method: http.MethodGet, Path: "/b"}:  GetBool(func() (bool, error) { return b, nil }),
		{Method: http.MethodPost, Path: "/b"}: SetBool(func(v bool) error { b = v; return nil }),
		{Method: http.MethodGet, Path: "/e"}:  GetFloat(func() (float64, error) { return 0, bad }),
	}
	mux := chi.NewRouter()
	rt.Bind(mux)
	do := func(method, path, body string) (int, string) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec.Code, rec.Body.String()
	}

	code, _ := do(http.MethodPost, "/f", `{"f64":2.25}`)
	assert.Equal(t, http.StatusOK, code)
	_, body := do(http.MethodGet, "/f", "")
	assert.JSONEq(t, `{"f64":2.25}`, body)

	do(http.MethodPost, "/s", `{"str":"pgrey"}`)
	_, body = do(http.MethodGet, "/s", "")
	assert.JSONEq(t, `{"str":"pgrey"}`, body)

	do(http.MethodPost, "/b", `{"bool":true}`)
	_, body = do(http.MethodGet, "/b", "")
	assert.JSONEq(t, `{"bool":true}`, body)

	code, _ = do(http.MethodPost, "/f", `{`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, body = do(http.MethodGet, "/e", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body, "device fault")

	code, body = do(http.MethodGet, "/endpoints", "")
	require.Equal(t, http.StatusOK, code)
	var eps []string
	require.NoError(t, json.Unmarshal([]byte(body), &eps))
	assert.Equal(t, rt.Endpoints(), eps)
	assert.Contains(t, eps, "POST /b")
}
