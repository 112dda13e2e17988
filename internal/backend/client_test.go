package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doublev/bff-gateway/internal/auth"
)

func TestDo_SetsNonCacheableHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient()
	raw, err := c.Do(context.Background(), &Request{
		Method:     http.MethodGet,
		URL:        srv.URL + "/api/clients",
		Credential: auth.Bearer("tok"),
		RequestID:  "req-1",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, raw.StatusCode)
	assert.Equal(t, "OK", raw.StatusText)
	assert.Equal(t, "application/json", raw.ContentType)
	assert.JSONEq(t, `{"data":[]}`, string(raw.Body))
	assert.True(t, raw.IsSuccess())

	assert.Equal(t, "no-cache, no-store", got.Get("Cache-Control"))
	assert.Equal(t, "no-cache", got.Get("Pragma"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "req-1", got.Get(HeaderRequestID))
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
}

func TestDo_NoCredentialNoHeader(t *testing.T) {
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Authorization"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	raw, err := NewClient().Do(context.Background(), &Request{Method: http.MethodDelete, URL: srv.URL})
	require.NoError(t, err)

	assert.False(t, present)
	assert.Equal(t, http.StatusNoContent, raw.StatusCode)
	assert.Empty(t, raw.Body)
}

func TestDo_SendsBody(t *testing.T) {
	var body string
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := NewClient().Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   []byte(`{"data":{"name":"ACME"}}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, `{"data":{"name":"ACME"}}`, body)
}

func TestDo_NonSuccessIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("Method Not Allowed"))
	}))
	defer srv.Close()

	raw, err := NewClient().Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, http.StatusMethodNotAllowed, raw.StatusCode)
	assert.Equal(t, "Method Not Allowed", raw.StatusText)
	assert.False(t, raw.IsSuccess())
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	raw, err := NewClient().Do(context.Background(), &Request{Method: http.MethodGet, URL: url})

	assert.Nil(t, raw)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, url, te.URL)
	assert.Equal(t, "get", te.Op)
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(WithTimeout(50*time.Millisecond)).Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})

	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestDo_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient().Do(ctx, &Request{Method: http.MethodGet, URL: srv.URL})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDo_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 128)))
	}))
	defer srv.Close()

	_, err := NewClient(WithMaxResponseBytes(64)).Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})

	assert.True(t, errors.Is(err, ErrResponseTooLarge))
}

func TestWithHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	c := NewClient(WithHTTPClient(hc))
	assert.Same(t, hc, c.httpClient)
}
