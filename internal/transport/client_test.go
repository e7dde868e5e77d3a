package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

func fastRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 5 * time.Millisecond
	b.MaxElapsedTime = 200 * time.Millisecond
	return b
}

func TestAuthenticators(t *testing.T) {
	tests := []struct {
		name  string
		auth  Authenticator
		check func(t *testing.T, req *http.Request)
	}{
		{
			name: "none",
			auth: &NoAuth{},
			check: func(t *testing.T, req *http.Request) {
				assert.Empty(t, req.Header)
			},
		},
		{
			name: "basic",
			auth: &BasicAuth{Username: "api", Password: "secret"},
			check: func(t *testing.T, req *http.Request) {
				user, pass, ok := req.BasicAuth()
				require.True(t, ok)
				assert.Equal(t, "api", user)
				assert.Equal(t, "secret", pass)
			},
		},
		{
			name: "basic without credentials",
			auth: &BasicAuth{},
			check: func(t *testing.T, req *http.Request) {
				assert.Empty(t, req.Header.Get("Authorization"))
			},
		},
		{
			name: "header",
			auth: &HeaderAuth{Header: "X-Token", Value: "abc"},
			check: func(t *testing.T, req *http.Request) {
				assert.Equal(t, "abc", req.Header.Get("X-Token"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{Header: make(http.Header)}
			tt.auth.Apply(req)
			tt.check(t, req)
		})
	}
}

func TestDoSendsJSONWithHeaders(t *testing.T) {
	var got struct {
		Name string `json:"name"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users", r.URL.Path)
		assert.Equal(t, "3", r.Header.Get("X-Server-Protocol-Version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		user, _, _ := r.BasicAuth()
		assert.Equal(t, "api", user)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", &BasicAuth{Username: "api", Password: "pw"},
		WithHeader("X-Server-Protocol-Version", "3"))

	var resp struct {
		ID int `json:"id"`
	}
	err := c.Post(context.Background(), "users", map[string]string{"name": "alice"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, 42, resp.ID)
	assert.Equal(t, "alice", got.Name)
}

func TestNonSuccessStatusBecomesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"username taken"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil, WithBackOff(fastRetry))
	err := c.Post(context.Background(), "users", map[string]string{}, nil)
	require.Error(t, err)

	var terr *errors.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusUnprocessableEntity, terr.StatusCode)
	assert.Contains(t, terr.Body, "username taken")
	assert.False(t, terr.Retryable())
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"users": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil, WithBackOff(fastRetry))
	var resp map[string]any
	require.NoError(t, c.Get(context.Background(), "users", &resp))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, nil, WithBackOff(fastRetry))
	err := c.Delete(context.Background(), "users/1")
	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))
	assert.Greater(t, calls.Load(), int32(1))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, nil, WithBackOff(fastRetry))
	require.Error(t, c.Delete(context.Background(), "users/1"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, nil, WithMaxElapsed(0))
	err := c.Get(context.Background(), "users", nil)
	assert.True(t, errors.IsUnavailable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCanceledContextStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(srv.URL, nil)
	err := c.Get(ctx, "users", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	var resp map[string]any
	err := c.Get(context.Background(), "users", &resp)
	var perr *errors.ParseError
	assert.ErrorAs(t, err, &perr)
}
