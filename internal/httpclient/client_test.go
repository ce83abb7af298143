package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrarare-tech/secfetch/internal/httpclient"
	"github.com/ultrarare-tech/secfetch/internal/ratelimit"
)

func newClient(t *testing.T, opts ...httpclient.Option) *httpclient.Client {
	t.Helper()
	limiter, err := ratelimit.New(1000) // fast enough to not dominate test timing
	require.NoError(t, err)
	c, err := httpclient.New("secfetch-tests test@example.com", limiter, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresContactUserAgent(t *testing.T) {
	limiter, err := ratelimit.New(1)
	require.NoError(t, err)

	_, err = httpclient.New("", limiter)
	require.Error(t, err)
	var missing *httpclient.MissingUserAgentError
	assert.ErrorAs(t, err, &missing)

	_, err = httpclient.New("no-contact-info", limiter)
	require.Error(t, err)
}

func TestGetBytes_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := newClient(t)
	body, err := c.GetBytes(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestGetBytes_NonRetryable4xxFailsFast(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(t, httpclient.WithMaxRetries(3))
	_, err := c.GetBytes(context.Background(), srv.URL)
	require.Error(t, err)
	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "a non-429 4xx must not be retried")
}

func TestGetBytes_RetriesOn5xxThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newClient(t, httpclient.WithMaxRetries(5))
	body, err := c.GetBytes(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestGetBytes_RetriesOn429WithRetryAfterHeaderThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newClient(t, httpclient.WithMaxRetries(3))
	body, err := c.GetBytes(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestGetBytes_RetriesOn429WithoutRetryAfterHeaderThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newClient(t, httpclient.WithMaxRetries(3))
	body, err := c.GetBytes(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestGetBytes_RetriesExhaustedReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(t, httpclient.WithMaxRetries(2))
	_, err := c.GetBytes(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestGetJSON_DecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"acme"}`))
	}))
	defer srv.Close()

	c := newClient(t)
	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &v))
	assert.Equal(t, "acme", v.Name)
}

func TestGetHTMLListing_ExtractsFileNamesSkippingParentLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
<html><body><table>
<tr><td><a href="../">../</a></td></tr>
<tr><td class="filename"><a href="0001234567-24-000001-index.htm">0001234567-24-000001-index.htm</a></td></tr>
<tr><td class="filename"><a href="primary_doc.xml">primary_doc.xml</a></td></tr>
</table></body></html>`))
	}))
	defer srv.Close()

	c := newClient(t)
	names, err := c.GetHTMLListing(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, names, "primary_doc.xml")
	assert.Contains(t, names, "0001234567-24-000001-index.htm")
	assert.NotContains(t, names, "../")
}
