package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestClient(base string) *Client {
	return NewClient(noop.NewTracerProvider().Tracer("test"), StaticResolver{"svc": base})
}

func TestPostJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"got": in["name"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := newTestClient(srv.URL).PostJSON(context.Background(), "svc", "/echo", map[string]string{"name": "a"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "a", out["got"])
}

func TestGetJSON_ClientErrorDoesNotTripBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 10; i++ {
		err := c.GetJSON(context.Background(), "svc", "/missing", nil, nil)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
	}
	assert.EqualValues(t, 10, atomic.LoadInt32(&calls))
}

func TestDo_ServerErrorsOpenBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		require.Error(t, c.GetJSON(context.Background(), "svc", "/", nil, nil))
	}
	err := c.GetJSON(context.Background(), "svc", "/", nil, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 5, atomic.LoadInt32(&calls))
}

func TestStaticResolver_UnknownService(t *testing.T) {
	_, err := StaticResolver{}.Resolve(context.Background(), "ghost")
	assert.Error(t, err)
}
