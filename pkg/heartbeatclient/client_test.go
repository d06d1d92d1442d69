package heartbeatclient

import (
	"context"
	"github.com/function61/gokit/assert"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPing(t *testing.T) {
	var method, path, interval, authorization string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		interval = r.URL.Query().Get("interval")
		authorization = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"slug": "nightly-backup", "state": "ok", "status": "ok", "interval": "1h 30m", "interval_seconds": 5400}`))
	}))
	defer server.Close()

	sum, err := New(server.URL, "secret").Ping(context.Background(), "nightly-backup", "1h30m")
	assert.Ok(t, err)

	assert.EqualString(t, method, http.MethodPost)
	assert.EqualString(t, path, "/heartbeat/nightly-backup")
	assert.EqualString(t, interval, "1h30m")
	assert.EqualString(t, authorization, "Bearer secret")
	assert.EqualString(t, sum.Interval, "1h 30m")
	assert.Assert(t, sum.IntervalSeconds == 5400)
}

func TestFail(t *testing.T) {
	var path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"slug": "db-dump", "state": "ok", "status": "overdue"}`))
	}))
	defer server.Close()

	sum, err := New(server.URL, "secret").Fail(context.Background(), "db-dump")
	assert.Ok(t, err)
	assert.EqualString(t, path, "/heartbeat/db-dump/fail")
	assert.EqualString(t, string(sum.Status), "overdue")
}

func TestUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid or missing API key"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "wrong").Ping(context.Background(), "db-dump", "")
	assert.Assert(t, err != nil)
}

func TestManagementCalls(t *testing.T) {
	calls := []string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)

		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/monitors":
			_, _ = w.Write([]byte(`[{"slug": "a"}, {"slug": "b"}]`))
		case "/monitors/a":
			_, _ = w.Write([]byte(`{"ok": true}`))
		default:
			_, _ = w.Write([]byte(`{"slug": "a", "paused": true}`))
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := New(server.URL, "secret")

	summaries, err := client.List(ctx)
	assert.Ok(t, err)
	assert.Assert(t, len(summaries) == 2)

	paused, err := client.Pause(ctx, "a")
	assert.Ok(t, err)
	assert.Assert(t, paused.Paused)

	_, err = client.Unpause(ctx, "a")
	assert.Ok(t, err)

	assert.Ok(t, client.Delete(ctx, "a"))

	assert.EqualJson(t, calls, `[
  "GET /monitors",
  "POST /monitors/a/pause",
  "POST /monitors/a/unpause",
  "DELETE /monitors/a"
]`)
}
