package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/labelsync/internal/domain/integration"
)

func newTestClient() *Client {
	return New(Config{Timeout: 5 * time.Second, Retry: RetryPolicy{Attempts: 3, Wait: time.Millisecond}})
}

func TestClient_PostJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "52DUG", body["storeId"])

		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("X-Key", "abc")

	var out map[string]any
	err := newTestClient().PostJSON(context.Background(), server.URL, header, map[string]string{"storeId": "52DUG"}, &out)
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"value":1}`))
	}))
	defer server.Close()

	var out struct{ Value int }
	err := newTestClient().PostJSON(context.Background(), server.URL, nil, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, out.Value)
}

func TestClient_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
	}))
	defer server.Close()

	err := newTestClient().PostJSON(context.Background(), server.URL, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, integration.ErrTransport))

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "busy", httpErr.Body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := newTestClient().PostJSON(context.Background(), server.URL, nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrTransport)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_InvalidJSONIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer server.Close()

	var out map[string]any
	err := newTestClient().PostJSON(context.Background(), server.URL, nil, nil, &out)
	assert.ErrorIs(t, err, integration.ErrTransport)
}

func TestLoginTokenSource(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		_, _ = w.Write([]byte(`{"access_token":"tok-1"}`))
	}))
	defer server.Close()

	ts := NewClientCredentialsSource(newTestClient(), server.URL, "id", "secret", time.Hour)
	for i := 0; i < 3; i++ {
		token, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestPasswordLoginSource_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	ts := NewPasswordLoginSource(newTestClient(), server.URL, "admin", "pw", time.Hour)
	_, err := ts.Token(context.Background())
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestStaticTokenAndBearerHeader(t *testing.T) {
	h, err := BearerHeader(context.Background(), StaticToken("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer xyz", h.Get("Authorization"))

	_, err = StaticToken("").Token(context.Background())
	assert.ErrorIs(t, err, ErrEmptyToken)
}
