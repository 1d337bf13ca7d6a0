package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
)

type captured struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	header        http.Header
}

func testConfig(url string) config.GatewayConfig {
	return config.GatewayConfig{
		URL:              url,
		UserAgent:        "menuwatch-test",
		Origin:           "https://example.test",
		Region:           "CA",
		Channel:          "whitelabel",
		ServiceMode:      "pickup",
		TimeoutSeconds:   2,
		RetryAttempts:    3,
		RetryBaseDelayMs: 1,
		RetryMaxDelayMs:  2,
	}
}

// server answers with respond and records every request it sees.
func server(t *testing.T, respond func(n int, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]captured, *int32) {
	t.Helper()
	var (
		calls int32
		seen  []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		body, _ := io.ReadAll(r.Body)
		var c captured
		_ = json.Unmarshal(body, &c)
		c.header = r.Header.Clone()
		seen = append(seen, c)
		respond(n, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen, &calls
}

func newClient(t *testing.T, cfg config.GatewayConfig) *Client {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestClient_RetriesTransportErrors(t *testing.T) {
	srv, _, calls := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		if n < 3 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	})

	doc, err := newClient(t, testConfig(srv.URL)).Post(context.Background(), "Op", "query Op { ok }", nil)
	require.NoError(t, err)
	assert.True(t, doc.Get("data").Get("ok").Truthy())
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestClient_GivesUpAfterAttempts(t *testing.T) {
	srv, _, calls := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			_ = conn.Close()
		}
	})

	_, err := newClient(t, testConfig(srv.URL)).Post(context.Background(), "Op", "query Op { ok }", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrGatewayRejected))
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestClient_Non200IsNotRetried(t *testing.T) {
	long := strings.Repeat("x", 2000)
	srv, _, calls := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(long))
	})

	_, err := newClient(t, testConfig(srv.URL)).Post(context.Background(), "Op", "query Op { ok }", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)

	var rerr *ResponseError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusBadRequest, rerr.StatusCode)
	assert.Len(t, rerr.Body, MaxLoggedBody+3)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestClient_GraphQLErrorsAreRejected(t *testing.T) {
	srv, _, calls := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Unknown argument"}]}`))
	})

	_, err := newClient(t, testConfig(srv.URL)).Post(context.Background(), "Op", "query Op { ok }", nil)
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
	assert.Contains(t, err.Error(), "Unknown argument")
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestClient_GraphQLErrorsKeepDocument(t *testing.T) {
	srv, _, _ := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"ok":true},"errors":[{"message":"partial"}]}`))
	})

	doc, err := newClient(t, testConfig(srv.URL)).Post(context.Background(), "Op", "query Op { ok }", nil)
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
	require.NotNil(t, doc)
	assert.True(t, doc.Get("data").Get("ok").Truthy())
}

func TestClient_EmptyErrorsArrayIsRejected(t *testing.T) {
	srv, _, calls := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"ok":true},"errors":[]}`))
	})

	_, err := newClient(t, testConfig(srv.URL)).Post(context.Background(), "Op", "query Op { ok }", nil)
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestClient_NullErrorsIsSuccess(t *testing.T) {
	srv, _, _ := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"ok":true},"errors":null}`))
	})

	doc, err := newClient(t, testConfig(srv.URL)).Post(context.Background(), "Op", "query Op { ok }", nil)
	require.NoError(t, err)
	assert.True(t, doc.Get("data").Get("ok").Truthy())
}

func TestClient_UnparseableBodyIsRejected(t *testing.T) {
	srv, _, _ := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})
	_, err := newClient(t, testConfig(srv.URL)).Post(context.Background(), "Op", "query Op { ok }", nil)
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
}

func TestClient_Headers(t *testing.T) {
	srv, seen, _ := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	cfg := testConfig(srv.URL)
	cfg.Auth = "Bearer abc"
	cfg.Cookie = "session=1"
	cfg.HeadersJSON = `{"x-ui-language":"fr","authorization":"overridden"}`

	_, err := newClient(t, cfg).Post(context.Background(), "Op", "query Op { ok }", nil)
	require.NoError(t, err)
	require.Len(t, *seen, 1)
	h := (*seen)[0].header
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "menuwatch-test", h.Get("User-Agent"))
	assert.Equal(t, "fr", h.Get("X-Ui-Language"))
	assert.Equal(t, "Bearer abc", h.Get("Authorization"))
	assert.Equal(t, "session=1", h.Get("Cookie"))
	assert.Equal(t, "Op", (*seen)[0].OperationName)
}

func TestMenuClient_StoreMenu(t *testing.T) {
	srv, seen, _ := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"storeMenu":[
			{"id":"it-1","isAvailable":true,"price":{"default":399}},
			{"id":"it-2","isAvailable":false,"price":null},
			"junk"
		]}}`))
	})
	cfg := testConfig(srv.URL)
	cfg.ExtraVariablesJSON = `{"serviceMode":"delivery","locale":"fr"}`

	mc, err := NewMenuClient(newClient(t, cfg), cfg)
	require.NoError(t, err)
	entries, err := mc.StoreMenu(context.Background(), "100001")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "it-1", entries[0].ItemID)
	assert.True(t, entries[0].Available)
	require.NotNil(t, entries[0].PriceCents)
	assert.Equal(t, 399, *entries[0].PriceCents)
	assert.Nil(t, entries[1].PriceCents)

	vars := (*seen)[0].Variables
	assert.Equal(t, "100001", vars["storeId"])
	assert.Equal(t, "pickup", vars["serviceMode"])
	assert.Equal(t, "fr", vars["locale"])
	assert.Equal(t, storeMenuOperation, (*seen)[0].OperationName)
}

func TestMenuClient_NullMenu(t *testing.T) {
	srv, _, _ := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"storeMenu":null}}`))
	})
	cfg := testConfig(srv.URL)
	mc, err := NewMenuClient(newClient(t, cfg), cfg)
	require.NoError(t, err)
	entries, err := mc.StoreMenu(context.Background(), "100001")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMenuClient_PartialDataWithErrors(t *testing.T) {
	srv, _, calls := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"storeMenu":[
			{"id":"it-1","isAvailable":true,"price":{"default":399}},
			{"id":"it-2","isAvailable":false,"price":null}
		]},"errors":[{"message":"price unavailable","path":["storeMenu",1,"price"]}]}`))
	})
	cfg := testConfig(srv.URL)
	mc, err := NewMenuClient(newClient(t, cfg), cfg)
	require.NoError(t, err)

	entries, err := mc.StoreMenu(context.Background(), "100001")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "it-1", entries[0].ItemID)
	assert.Equal(t, "it-2", entries[1].ItemID)
	assert.False(t, entries[1].Available)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestMenuClient_ErrorsWithoutMenu(t *testing.T) {
	srv, _, _ := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"storeMenu":null},"errors":[{"message":"store not found"}]}`))
	})
	cfg := testConfig(srv.URL)
	mc, err := NewMenuClient(newClient(t, cfg), cfg)
	require.NoError(t, err)

	entries, err := mc.StoreMenu(context.Background(), "100001")
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
	assert.Empty(t, entries)
}

func TestMenuClient_OutOfRangePriceIsDropped(t *testing.T) {
	srv, _, _ := server(t, func(n int, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"storeMenu":[{"id":"it-1","isAvailable":true,"price":{"default":1e300}}]}}`))
	})
	cfg := testConfig(srv.URL)
	mc, err := NewMenuClient(newClient(t, cfg), cfg)
	require.NoError(t, err)

	entries, err := mc.StoreMenu(context.Background(), "100001")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].PriceCents)
}
